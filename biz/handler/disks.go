package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"github.com/driveyard/driveyard/pkg/disk"
)

// DiskHandler exposes the programmatic disk operations over HTTP: multipart
// upload, signed URL issuing and deletion.
type DiskHandler struct {
	disks   map[string]disk.Driver
	maxSize int64
}

func NewDiskHandler(disks map[string]disk.Driver, maxUploadSize int64) *DiskHandler {
	return &DiskHandler{disks: disks, maxSize: maxUploadSize}
}

func (h *DiskHandler) driverFor(c *app.RequestContext) (disk.Driver, error) {
	name := c.Param("disk")
	drv, ok := h.disks[name]
	if !ok {
		return nil, fmt.Errorf("unknown disk %q", name)
	}
	return drv, nil
}

// Upload stages the multipart part to a temporary file and moves it onto
// the disk. The stored name is generated (uuid plus the original
// extension) so client-supplied names never become storage paths.
func (h *DiskHandler) Upload(ctx context.Context, c *app.RequestContext) {
	drv, err := h.driverFor(c)
	if err != nil {
		writeNotFound(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if h.maxSize > 0 && fileHeader.Size > h.maxSize {
		writeBadRequest(c, fmt.Errorf("file exceeds the %d byte upload limit", h.maxSize))
		return
	}

	staged := uuid.NewString() + strings.ToLower(filepath.Ext(fileHeader.Filename))
	tempPath := filepath.Join(os.TempDir(), staged)
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		writeInternalError(c, err)
		return
	}

	result, err := drv.PutFile(ctx, &disk.UploadedFile{
		Name:     fileHeader.Filename,
		TempPath: tempPath,
		Size:     fileHeader.Size,
	}, c.Query("folder"))
	if err != nil {
		os.Remove(tempPath)
		if errors.Is(err, disk.ErrInvalidPath) {
			writeBadRequest(c, err)
			return
		}
		writeInternalError(c, err)
		return
	}

	writeOK(c, result)
}

// SignedURL issues a time-limited URL for a stored file. The expires query
// parameter is in seconds; omit it for the signer's default.
func (h *DiskHandler) SignedURL(ctx context.Context, c *app.RequestContext) {
	drv, err := h.driverFor(c)
	if err != nil {
		writeNotFound(c, err)
		return
	}
	p := c.Query("path")
	if p == "" {
		writeBadRequest(c, errors.New("path is required"))
		return
	}

	var expiresIn time.Duration
	if raw := c.Query("expires"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 {
			writeBadRequest(c, errors.New("expires must be a positive number of seconds"))
			return
		}
		expiresIn = time.Duration(seconds) * time.Second
	}

	url, err := drv.SignedURL(p, expiresIn)
	if err != nil {
		if errors.Is(err, disk.ErrInvalidPath) || errors.Is(err, disk.ErrFeatureDisabled) {
			writeBadRequest(c, err)
			return
		}
		writeInternalError(c, err)
		return
	}
	writeOK(c, map[string]string{"url": url})
}

// DeleteFile removes a stored file. Deleting a missing file succeeds.
func (h *DiskHandler) DeleteFile(ctx context.Context, c *app.RequestContext) {
	drv, err := h.driverFor(c)
	if err != nil {
		writeNotFound(c, err)
		return
	}
	p := strings.TrimPrefix(c.Param("filepath"), "/")
	if err := drv.Delete(ctx, p); err != nil {
		if errors.Is(err, disk.ErrInvalidPath) {
			writeBadRequest(c, err)
			return
		}
		writeInternalError(c, err)
		return
	}
	writeOK(c, nil)
}
