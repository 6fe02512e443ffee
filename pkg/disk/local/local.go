// Package local implements the filesystem-backed storage driver. Logical
// paths are resolved under a root directory and delegated to OS
// primitives.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/driveyard/driveyard/pkg/disk"
)

type Driver struct {
	*disk.URLBuilder

	root string
}

func New(root string, urls *disk.URLBuilder) (*Driver, error) {
	if root == "" {
		return nil, fmt.Errorf("local disk root must be configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create disk root: %w", err)
	}
	return &Driver{URLBuilder: urls, root: root}, nil
}

// abs resolves a logical path to an absolute location under the disk root.
func (d *Driver) abs(p string) (string, error) {
	rel, err := disk.Resolve(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(rel)), nil
}

func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	full, err := d.abs(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return true, nil
}

func (d *Driver) Get(ctx context.Context, p string) ([]byte, error) {
	full, err := d.abs(p)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, disk.ErrNotFound)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

func (d *Driver) GetStream(ctx context.Context, p string) (io.ReadCloser, error) {
	full, err := d.abs(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, disk.ErrNotFound)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (d *Driver) GetStats(ctx context.Context, p string) (disk.FileStats, error) {
	full, err := d.abs(p)
	if err != nil {
		return disk.FileStats{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return disk.FileStats{}, fmt.Errorf("%s: %w", p, disk.ErrNotFound)
		}
		return disk.FileStats{}, fmt.Errorf("stat file: %w", err)
	}
	return disk.FileStats{Size: info.Size(), Modified: info.ModTime()}, nil
}

func (d *Driver) Put(ctx context.Context, p string, content []byte) error {
	full, err := d.abs(p)
	if err != nil {
		return err
	}
	return writeAtomic(full, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

func (d *Driver) PutStream(ctx context.Context, p string, source io.Reader) error {
	full, err := d.abs(p)
	if err != nil {
		return err
	}
	return writeAtomic(full, func(w io.Writer) error {
		_, err := io.Copy(w, source)
		return err
	})
}

// writeAtomic stages the content in a temp file next to the destination
// and renames it into place, so a partially written file is never visible
// at the destination path.
func writeAtomic(dst string, fill func(io.Writer) error) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (d *Driver) PutFile(ctx context.Context, file *disk.UploadedFile, destFolder string) (*disk.PutFileResult, error) {
	folder, err := disk.ResolveFolder(destFolder)
	if err != nil {
		return nil, err
	}
	name := file.StoredName
	if name == "" {
		name = filepath.Base(file.TempPath)
	}
	rel := path.Join(folder, name)
	full, err := d.abs(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if err := os.Rename(file.TempPath, full); err != nil {
		// Cross-volume staging area: fall back to copy then delete.
		if err := copyThenDelete(file.TempPath, full); err != nil {
			return nil, err
		}
	}
	return &disk.PutFileResult{State: "moved", FilePath: rel, FileName: name}, nil
}

func (d *Driver) Copy(ctx context.Context, src, dst string) error {
	srcFull, err := d.abs(src)
	if err != nil {
		return err
	}
	dstFull, err := d.abs(dst)
	if err != nil {
		return err
	}
	return copyFile(srcFull, dstFull, src)
}

func (d *Driver) Move(ctx context.Context, src, dst string) error {
	srcFull, err := d.abs(src)
	if err != nil {
		return err
	}
	dstFull, err := d.abs(dst)
	if err != nil {
		return err
	}
	if _, err := os.Stat(srcFull); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, disk.ErrNotFound)
		}
		return fmt.Errorf("stat file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstFull), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	// Same-volume rename is atomic; otherwise keep the destination durable
	// before the source disappears.
	if err := os.Rename(srcFull, dstFull); err != nil {
		return copyThenDelete(srcFull, dstFull)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, p string) error {
	full, err := d.abs(p)
	if err != nil {
		return err
	}
	// Missing files and missing parent directories are both reported as
	// not-exist; deletion is idempotent over them.
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func copyFile(srcFull, dstFull, logical string) error {
	src, err := os.Open(srcFull)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", logical, disk.ErrNotFound)
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	return writeAtomic(dstFull, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
}

func copyThenDelete(srcFull, dstFull string) error {
	src, err := os.Open(srcFull)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	if err := writeAtomic(dstFull, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		src.Close()
		return err
	}
	src.Close()
	if err := os.Remove(srcFull); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}
