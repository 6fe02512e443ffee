package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gorm.io/gorm"

	"github.com/driveyard/driveyard/biz/handler"
	"github.com/driveyard/driveyard/biz/middleware"
	"github.com/driveyard/driveyard/biz/router"
	"github.com/driveyard/driveyard/pkg/config"
	"github.com/driveyard/driveyard/pkg/database"
	"github.com/driveyard/driveyard/pkg/disk"
	"github.com/driveyard/driveyard/pkg/disk/dbstore"
	"github.com/driveyard/driveyard/pkg/disk/local"
	"github.com/driveyard/driveyard/pkg/disk/memory"
	"github.com/driveyard/driveyard/pkg/disk/s3"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		hlog.Fatalf("load config: %v", err)
	}
	if cfg.Signing.Secret == "" {
		hlog.Warnf("signing.secret is empty; signed URLs for private disks are forgeable")
	}
	signer := disk.NewSigner(cfg.Signing.Secret, cfg.Signing.TTL())

	var db *gorm.DB
	if needsDatabase(cfg.Disks) {
		db, err = database.Open(cfg.Database)
		if err != nil {
			hlog.Fatalf("open database: %v", err)
		}
	}

	names := make([]string, 0, len(cfg.Disks))
	for name := range cfg.Disks {
		names = append(names, name)
	}
	sort.Strings(names)

	drivers := make(map[string]disk.Driver, len(cfg.Disks))
	var servers []*handler.FileServer
	for _, name := range names {
		dc := cfg.Disks[name]
		drv, err := newDriver(name, dc, signer, db)
		if err != nil {
			hlog.Fatalf("build disk %q: %v", name, err)
		}
		drivers[name] = drv
		if dc.ServeAssets {
			servers = append(servers, handler.NewFileServer(name, dc, drv, signer))
		}
	}

	h := server.Default(server.WithHostPorts(cfg.Server.Address))
	h.Use(middleware.Recovery(), middleware.Logging(), middleware.CORS(&cfg.CORS))

	var uploadLimiter app.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())
		uploadLimiter = limiter.Middleware()
	}

	router.Register(h, handler.NewDiskHandler(drivers, cfg.Upload.MaxSize), servers, uploadLimiter)

	hlog.Infof("listening on %s with %d disk(s)", cfg.Server.Address, len(drivers))
	h.Spin()
}

// newDriver builds the storage backend for one configured disk.
func newDriver(name string, cfg disk.Config, signer *disk.Signer, db *gorm.DB) (disk.Driver, error) {
	urls := &disk.URLBuilder{
		DiskName:    name,
		BasePath:    cfg.BasePath,
		ServeAssets: cfg.ServeAssets,
		Signer:      signer,
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return local.New(cfg.Root, urls)
	case "memory":
		return memory.New(urls), nil
	case "s3":
		return s3.New(cfg.S3, urls)
	case "database":
		return dbstore.New(db, name, urls)
	default:
		return nil, fmt.Errorf("unsupported disk driver: %s", cfg.Driver)
	}
}

func needsDatabase(disks map[string]disk.Config) bool {
	for _, dc := range disks {
		if strings.ToLower(dc.Driver) == "database" {
			return true
		}
	}
	return false
}
