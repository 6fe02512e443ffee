// Package memory implements a volatile in-process storage driver backed by
// a path-keyed table. Contents live for the process lifetime only.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/driveyard/driveyard/pkg/disk"
)

type entry struct {
	content  []byte
	modified time.Time
}

// Driver maps normalized paths to content and modification time. The table
// mutex guards the map itself, not write ordering: concurrent writers to
// the same path race and the last completed write wins.
type Driver struct {
	*disk.URLBuilder

	mu    sync.RWMutex
	files map[string]entry
}

func New(urls *disk.URLBuilder) *Driver {
	return &Driver{
		URLBuilder: urls,
		files:      make(map[string]entry),
	}
}

func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.files[key]
	return ok, nil
}

func (d *Driver) Get(ctx context.Context, p string) ([]byte, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	e, ok := d.files[key]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, disk.ErrNotFound)
	}
	out := make([]byte, len(e.content))
	copy(out, e.content)
	return out, nil
}

// GetStream snapshots the content at call time; later writes to the same
// path do not show through the returned reader.
func (d *Driver) GetStream(ctx context.Context, p string) (io.ReadCloser, error) {
	content, err := d.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return disk.NewByteStream(content), nil
}

func (d *Driver) GetStats(ctx context.Context, p string) (disk.FileStats, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return disk.FileStats{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.files[key]
	if !ok {
		return disk.FileStats{}, fmt.Errorf("%s: %w", key, disk.ErrNotFound)
	}
	return disk.FileStats{Size: int64(len(e.content)), Modified: e.modified}, nil
}

func (d *Driver) Put(ctx context.Context, p string, content []byte) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	d.mu.Lock()
	d.files[key] = entry{content: stored, modified: time.Now()}
	d.mu.Unlock()
	return nil
}

func (d *Driver) PutStream(ctx context.Context, p string, source io.Reader) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(source)
	if err != nil {
		return fmt.Errorf("read source stream: %w", err)
	}
	d.mu.Lock()
	d.files[key] = entry{content: content, modified: time.Now()}
	d.mu.Unlock()
	return nil
}

func (d *Driver) PutFile(ctx context.Context, file *disk.UploadedFile, destFolder string) (*disk.PutFileResult, error) {
	folder, err := disk.ResolveFolder(destFolder)
	if err != nil {
		return nil, err
	}
	name := file.StoredName
	if name == "" {
		name = path.Base(file.TempPath)
	}
	dst := path.Join(folder, name)

	content, err := os.ReadFile(file.TempPath)
	if err != nil {
		return nil, fmt.Errorf("read staged file: %w", err)
	}
	if err := d.Put(ctx, dst, content); err != nil {
		return nil, err
	}
	if err := os.Remove(file.TempPath); err != nil {
		return nil, fmt.Errorf("remove staged file: %w", err)
	}
	return &disk.PutFileResult{State: "moved", FilePath: dst, FileName: name}, nil
}

func (d *Driver) Copy(ctx context.Context, src, dst string) error {
	srcKey, err := disk.Resolve(src)
	if err != nil {
		return err
	}
	dstKey, err := disk.Resolve(dst)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.files[srcKey]
	if !ok {
		return fmt.Errorf("%s: %w", srcKey, disk.ErrNotFound)
	}
	content := make([]byte, len(e.content))
	copy(content, e.content)
	d.files[dstKey] = entry{content: content, modified: time.Now()}
	return nil
}

func (d *Driver) Move(ctx context.Context, src, dst string) error {
	srcKey, err := disk.Resolve(src)
	if err != nil {
		return err
	}
	dstKey, err := disk.Resolve(dst)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.files[srcKey]
	if !ok {
		return fmt.Errorf("%s: %w", srcKey, disk.ErrNotFound)
	}
	d.files[dstKey] = entry{content: e.content, modified: time.Now()}
	delete(d.files, srcKey)
	return nil
}

func (d *Driver) Delete(ctx context.Context, p string) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.files, key)
	d.mu.Unlock()
	return nil
}
