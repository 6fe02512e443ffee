package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driveyard/driveyard/pkg/disk"
)

func newTestDriver() *Driver {
	return New(&disk.URLBuilder{
		DiskName:    "mem",
		BasePath:    "/mem",
		ServeAssets: true,
		Signer:      disk.NewSigner("secret", time.Hour),
	})
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "foo.txt", []byte("hello world")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err := d.Exists(ctx, "foo.txt")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}
	content, err := d.Get(ctx, "foo.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(content) != "hello world" {
		t.Fatalf("Get = %q, want hello world", content)
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "foo.txt", []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Put(ctx, "foo.txt", []byte("second")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	content, err := d.Get(ctx, "foo.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(content) != "second" {
		t.Fatalf("expected last write to win, got %q", content)
	}
}

func TestNestedPathNeedsNoDirectories(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "bar/baz/foo.txt", []byte("bar")); err != nil {
		t.Fatalf("Put nested: %v", err)
	}
	ok, _ := d.Exists(ctx, "bar/baz/foo.txt")
	if !ok {
		t.Fatalf("expected nested file to exist")
	}
	if err := d.Delete(ctx, "bar/baz/foo.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, _ = d.Exists(ctx, "bar/baz/foo.txt")
	if ok {
		t.Fatalf("expected nested file to be gone")
	}
}

func TestGetMissingFailsNotFound(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if _, err := d.Get(ctx, "ghost.txt"); !errors.Is(err, disk.ErrNotFound) {
		t.Fatalf("Get missing: %v, want ErrNotFound", err)
	}
	if _, err := d.GetStats(ctx, "ghost.txt"); !errors.Is(err, disk.ErrNotFound) {
		t.Fatalf("GetStats missing: %v, want ErrNotFound", err)
	}
	if _, err := d.GetStream(ctx, "ghost.txt"); !errors.Is(err, disk.ErrNotFound) {
		t.Fatalf("GetStream missing: %v, want ErrNotFound", err)
	}
	// The NotFound failure carries the OS marker.
	_, err := d.Get(ctx, "ghost.txt")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist marker, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Delete(ctx, "never-existed.txt"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if err := d.Delete(ctx, "no/such/parent/file.txt"); err != nil {
		t.Fatalf("Delete with missing parent: %v", err)
	}
}

func TestCopyPreservesSource(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "src.txt", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Copy(ctx, "src.txt", "dir/dst.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	for _, p := range []string{"src.txt", "dir/dst.txt"} {
		content, err := d.Get(ctx, p)
		if err != nil {
			t.Fatalf("Get %s: %v", p, err)
		}
		if string(content) != "payload" {
			t.Fatalf("Get %s = %q, want payload", p, content)
		}
	}

	if err := d.Copy(ctx, "ghost.txt", "dst2.txt"); !errors.Is(err, disk.ErrNotFound) {
		t.Fatalf("Copy missing src: %v, want ErrNotFound", err)
	}
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "src.txt", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Move(ctx, "src.txt", "dst.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if ok, _ := d.Exists(ctx, "src.txt"); ok {
		t.Fatalf("expected source to be gone after move")
	}
	content, err := d.Get(ctx, "dst.txt")
	if err != nil || string(content) != "payload" {
		t.Fatalf("Get dst = %q, %v; want payload", content, err)
	}

	if err := d.Move(ctx, "ghost.txt", "other.txt"); !errors.Is(err, disk.ErrNotFound) {
		t.Fatalf("Move missing src: %v, want ErrNotFound", err)
	}
	if ok, _ := d.Exists(ctx, "other.txt"); ok {
		t.Fatalf("failed move must not create a destination")
	}
}

func TestGetStatsSize(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "foo.txt", []byte("hello world")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stats, err := d.GetStats(ctx, "foo.txt")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Size != 11 {
		t.Fatalf("Size = %d, want 11", stats.Size)
	}
	if stats.Modified.IsZero() {
		t.Fatalf("expected a modification time")
	}
}

func TestGetStreamSnapshotsAndIsSingleUse(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "foo.txt", []byte("before")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stream, err := d.GetStream(ctx, "foo.txt")
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	// A write after the stream was handed out must not show through it.
	if err := d.Put(ctx, "foo.txt", []byte("after")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	content, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(content) != "before" {
		t.Fatalf("stream = %q, want snapshot content before", content)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := stream.Read(make([]byte, 1)); !errors.Is(err, disk.ErrStreamConsumed) {
		t.Fatalf("expected ErrStreamConsumed on reuse, got %v", err)
	}
}

func TestPutStreamConsumesSource(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	source := bytes.NewBufferString("streamed content")
	if err := d.PutStream(ctx, "s.txt", source); err != nil {
		t.Fatalf("PutStream: %v", err)
	}
	if source.Len() != 0 {
		t.Fatalf("expected source to be fully consumed, %d bytes left", source.Len())
	}
	content, err := d.Get(ctx, "s.txt")
	if err != nil || string(content) != "streamed content" {
		t.Fatalf("Get = %q, %v", content, err)
	}
}

func TestPutStreamSourceError(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	broken := io.MultiReader(bytes.NewBufferString("partial"), errReader{})
	if err := d.PutStream(ctx, "broken.txt", broken); err == nil {
		t.Fatalf("expected PutStream to fail when the source errors")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("source failed") }

func TestPutFileMovesStagedFile(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	staged := filepath.Join(t.TempDir(), "f1e2d3.txt")
	if err := os.WriteFile(staged, []byte("uploaded"), 0o644); err != nil {
		t.Fatalf("stage file: %v", err)
	}

	result, err := d.PutFile(ctx, &disk.UploadedFile{
		Name:     "report.txt",
		TempPath: staged,
		Size:     8,
	}, "uploads")
	if err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if result.State != "moved" {
		t.Fatalf("State = %q, want moved", result.State)
	}
	if result.FilePath != "uploads/f1e2d3.txt" || result.FileName != "f1e2d3.txt" {
		t.Fatalf("unexpected result %+v", result)
	}
	content, err := d.Get(ctx, "uploads/f1e2d3.txt")
	if err != nil || string(content) != "uploaded" {
		t.Fatalf("Get = %q, %v", content, err)
	}
	if _, err := os.Stat(staged); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staged file should be removed, stat err = %v", err)
	}
}

func TestInvalidPathsRejected(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver()

	if err := d.Put(ctx, "../escape.txt", []byte("x")); !errors.Is(err, disk.ErrInvalidPath) {
		t.Fatalf("Put escape: %v, want ErrInvalidPath", err)
	}
	if _, err := d.Get(ctx, ""); !errors.Is(err, disk.ErrInvalidPath) {
		t.Fatalf("Get empty: %v, want ErrInvalidPath", err)
	}
}
