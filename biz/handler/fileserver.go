package handler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"

	"github.com/driveyard/driveyard/pkg/common"
	"github.com/driveyard/driveyard/pkg/disk"
)

const (
	accessDeniedBody = "Access denied"
	plainContentType = "text/plain; charset=utf-8"
)

// FileServer serves the files of exactly one disk under its base path.
// Private disks require a valid signature query parameter; responses carry
// an ETag derived from file stats and honor If-None-Match.
type FileServer struct {
	diskName   string
	cfg        disk.Config
	driver     disk.Driver
	signer     *disk.Signer
	registered bool
}

func NewFileServer(diskName string, cfg disk.Config, driver disk.Driver, signer *disk.Signer) *FileServer {
	return &FileServer{
		diskName: diskName,
		cfg:      cfg,
		driver:   driver,
		signer:   signer,
	}
}

// Register installs the wildcard GET route for this disk. It is a no-op
// when asset serving is disabled and idempotent across repeated calls.
func (s *FileServer) Register(r route.IRouter) {
	if s.registered || !s.cfg.ServeAssets {
		return
	}
	r.GET(s.cfg.BasePath+"/*filepath", s.ServeFile)
	s.registered = true
	hlog.Infof("disk %q serving assets under %s", s.diskName, s.cfg.BasePath)
}

// ServeFile handles one request: visibility check, stat lookup, ETag
// comparison, then either 304 or a streamed 200.
func (s *FileServer) ServeFile(ctx context.Context, c *app.RequestContext) {
	raw := strings.TrimPrefix(c.Param("filepath"), "/")
	key, resolveErr := disk.Resolve(raw)

	if s.cfg.Visibility == disk.VisibilityPrivate {
		// Missing, malformed, mismatched and expired signatures all
		// collapse into the same denial so callers cannot probe which
		// condition failed. No storage access happens on denial.
		token := c.Query("signature")
		if token == "" || resolveErr != nil ||
			s.signer.Verify(s.diskName, key, token, time.Now()) != nil {
			c.Data(consts.StatusUnauthorized, plainContentType, []byte(accessDeniedBody))
			return
		}
	}
	if resolveErr != nil {
		c.Data(consts.StatusNotFound, plainContentType, []byte("Not found"))
		return
	}

	stats, err := s.driver.GetStats(ctx, key)
	if err != nil {
		if errors.Is(err, disk.ErrNotFound) {
			c.Data(consts.StatusNotFound, plainContentType, []byte("Not found"))
			return
		}
		hlog.CtxErrorf(ctx, "disk %q: stat %s: %v", s.diskName, key, err)
		c.AbortWithStatus(consts.StatusInternalServerError)
		return
	}

	etag := etagFor(key, stats)
	if matchesETag(string(c.GetHeader("If-None-Match")), etag) {
		c.Response.Header.Set("ETag", etag)
		c.SetStatusCode(consts.StatusNotModified)
		return
	}

	stream, err := s.driver.GetStream(ctx, key)
	if err != nil {
		if errors.Is(err, disk.ErrNotFound) {
			c.Data(consts.StatusNotFound, plainContentType, []byte("Not found"))
			return
		}
		hlog.CtxErrorf(ctx, "disk %q: open %s: %v", s.diskName, key, err)
		c.AbortWithStatus(consts.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = consts.MIMEApplicationOctetStream
	}
	c.Response.Header.Set("ETag", etag)
	c.Response.Header.Set("Content-Type", contentType)
	c.SetStatusCode(consts.StatusOK)
	c.SetBodyStream(stream, int(stats.Size))
}

// etagFor derives a deterministic validator from the file's identity and
// stats: unchanged content and metadata always reproduce the same ETag.
func etagFor(key string, stats disk.FileStats) string {
	sum := common.GetMD5Hash(fmt.Sprintf("%s:%d:%d", key, stats.Size, stats.Modified.UnixNano()))
	return `"` + sum + `"`
}

func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
