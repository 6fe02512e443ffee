package router

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/driveyard/driveyard/biz/handler"
)

// Register configures HTTP routes: the JSON disk API under /api/v1 and one
// wildcard file route per serving disk. File server registration is an
// explicit, idempotent call rather than an import-time side effect.
func Register(h *server.Hertz, disks *handler.DiskHandler, servers []*handler.FileServer, uploadLimiter app.HandlerFunc) {
	v1 := h.Group("/api/v1")

	d := v1.Group("/disks/:disk")
	if uploadLimiter != nil {
		d.POST("/files", uploadLimiter, disks.Upload)
	} else {
		d.POST("/files", disks.Upload)
	}
	d.GET("/signed-url", disks.SignedURL)
	d.DELETE("/files/*filepath", disks.DeleteFile)

	for _, fs := range servers {
		fs.Register(h)
	}

	h.GET("/ping", handler.Ping)
}
