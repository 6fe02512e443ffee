package handler

import (
	"context"
	"strconv"
	"testing"
	"time"

	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"

	"github.com/driveyard/driveyard/pkg/disk"
	"github.com/driveyard/driveyard/pkg/disk/memory"
)

func newServedDisk(t *testing.T, visibility disk.Visibility) (*route.Engine, *memory.Driver, *disk.Signer) {
	t.Helper()
	signer := disk.NewSigner("unit-test-secret", time.Hour)
	cfg := disk.Config{
		Driver:      "memory",
		Visibility:  visibility,
		ServeAssets: true,
		BasePath:    "/media",
	}
	drv := memory.New(&disk.URLBuilder{
		DiskName:    "media",
		BasePath:    cfg.BasePath,
		ServeAssets: true,
		Signer:      signer,
	})

	engine := route.NewEngine(hertzconfig.NewOptions([]hertzconfig.Option{}))
	fs := NewFileServer("media", cfg, drv, signer)
	fs.Register(engine)
	// Registration is explicitly idempotent.
	fs.Register(engine)
	return engine, drv, signer
}

func TestServePublicFile(t *testing.T) {
	engine, drv, _ := newServedDisk(t, disk.VisibilityPublic)
	if err := drv.Put(context.Background(), "foo.txt", []byte("hello world")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	w := ut.PerformRequest(engine, "GET", "/media/foo.txt", nil)
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode())
	}
	if string(resp.Body()) != "hello world" {
		t.Fatalf("body = %q, want hello world", resp.Body())
	}
	if got := resp.Header.ContentLength(); got != 11 {
		t.Fatalf("Content-Length = %d, want 11", got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if resp.Header.Get("ETag") == "" {
		t.Fatalf("expected an ETag header")
	}
}

func TestConditionalGetReturns304(t *testing.T) {
	engine, drv, _ := newServedDisk(t, disk.VisibilityPublic)
	if err := drv.Put(context.Background(), "foo.txt", []byte("hello world")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first := ut.PerformRequest(engine, "GET", "/media/foo.txt", nil).Result()
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag on the first response")
	}

	second := ut.PerformRequest(engine, "GET", "/media/foo.txt", nil,
		ut.Header{Key: "If-None-Match", Value: etag}).Result()
	if second.StatusCode() != 304 {
		t.Fatalf("status = %d, want 304", second.StatusCode())
	}
	if len(second.Body()) != 0 {
		t.Fatalf("expected empty body, got %q", second.Body())
	}
	if second.Header.Get("ETag") != etag {
		t.Fatalf("ETag = %q, want %q reproduced", second.Header.Get("ETag"), etag)
	}
}

func TestETagChangesWithContent(t *testing.T) {
	engine, drv, _ := newServedDisk(t, disk.VisibilityPublic)
	ctx := context.Background()
	if err := drv.Put(ctx, "foo.txt", []byte("hello world")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first := ut.PerformRequest(engine, "GET", "/media/foo.txt", nil).Result()
	etag := first.Header.Get("ETag")

	if err := drv.Put(ctx, "foo.txt", []byte("something longer than before")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second := ut.PerformRequest(engine, "GET", "/media/foo.txt", nil,
		ut.Header{Key: "If-None-Match", Value: etag}).Result()
	if second.StatusCode() != 200 {
		t.Fatalf("status = %d, want 200 after content change", second.StatusCode())
	}
	if second.Header.Get("ETag") == etag {
		t.Fatalf("ETag should change when content changes")
	}
}

func TestMissingFileReturns404(t *testing.T) {
	engine, _, _ := newServedDisk(t, disk.VisibilityPublic)

	resp := ut.PerformRequest(engine, "GET", "/media/nope.txt", nil).Result()
	if resp.StatusCode() != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode())
	}
}

func TestPrivateDiskDeniesUnsigned(t *testing.T) {
	engine, drv, _ := newServedDisk(t, disk.VisibilityPrivate)
	if err := drv.Put(context.Background(), "foo.txt", []byte("secret")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	resp := ut.PerformRequest(engine, "GET", "/media/foo.txt", nil).Result()
	if resp.StatusCode() != 401 {
		t.Fatalf("status = %d, want 401", resp.StatusCode())
	}
	if string(resp.Body()) != "Access denied" {
		t.Fatalf("body = %q, want Access denied", resp.Body())
	}

	// A bad signature is indistinguishable from a missing one.
	resp = ut.PerformRequest(engine, "GET", "/media/foo.txt?signature=bogus.123", nil).Result()
	if resp.StatusCode() != 401 || string(resp.Body()) != "Access denied" {
		t.Fatalf("tampered signature: status = %d body = %q", resp.StatusCode(), resp.Body())
	}
}

func TestPrivateDiskServesSignedURL(t *testing.T) {
	engine, drv, _ := newServedDisk(t, disk.VisibilityPrivate)
	if err := drv.Put(context.Background(), "foo.txt", []byte("secret")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	url, err := drv.SignedURL("foo.txt", time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	resp := ut.PerformRequest(engine, "GET", url, nil).Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("status = %d, want 200 for a signed request", resp.StatusCode())
	}
	if string(resp.Body()) != "secret" {
		t.Fatalf("body = %q", resp.Body())
	}
	if resp.Header.Get("ETag") == "" {
		t.Fatalf("expected an ETag on signed responses")
	}
}

func TestPrivateDiskDeniesExpiredSignature(t *testing.T) {
	engine, drv, signer := newServedDisk(t, disk.VisibilityPrivate)
	if err := drv.Put(context.Background(), "foo.txt", []byte("secret")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Token that expired one hour ago.
	expired := time.Now().Add(-time.Hour)
	token := signer.Sign("media", "foo.txt", expired) + "." + strconv.FormatInt(expired.Unix(), 10)
	resp := ut.PerformRequest(engine, "GET", "/media/foo.txt?signature="+token, nil).Result()
	if resp.StatusCode() != 401 || string(resp.Body()) != "Access denied" {
		t.Fatalf("expired signature: status = %d body = %q", resp.StatusCode(), resp.Body())
	}
}

func TestTraversalPathDenied(t *testing.T) {
	engine, _, _ := newServedDisk(t, disk.VisibilityPublic)

	resp := ut.PerformRequest(engine, "GET", "/media/a/../../etc/passwd", nil).Result()
	if resp.StatusCode() == 200 {
		t.Fatalf("traversal path must not be served")
	}
}
