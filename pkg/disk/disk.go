// Package disk defines the storage driver abstraction for named logical
// disks. A disk binds a driver backend (memory, local filesystem, S3 or
// database) to a visibility policy and an optional HTTP serving prefix.
// All callers depend on the Driver interface; backends live in subpackages.
package disk

import (
	"context"
	"io"
	"time"
)

// Visibility controls whether files on a disk are served without
// authorization or require a signed URL.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Config describes one named disk.
type Config struct {
	Driver      string     `yaml:"driver"`
	Root        string     `yaml:"root"`
	Visibility  Visibility `yaml:"visibility"`
	ServeAssets bool       `yaml:"serve_assets"`
	BasePath    string     `yaml:"base_path"`
	S3          S3Config   `yaml:"s3"`
}

// S3Config holds S3-compatible backend settings for disks using the s3 driver.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// FileStats is the metadata view of a stored file.
type FileStats struct {
	Size     int64
	Modified time.Time
}

// UploadedFile describes a file staged to a temporary location by the
// multipart layer. StoredName optionally overrides the name the file keeps
// once moved onto the disk; by default the staged file name is preserved.
type UploadedFile struct {
	Name       string
	TempPath   string
	Size       int64
	StoredName string
}

// PutFileResult reports where an uploaded file landed.
type PutFileResult struct {
	State    string `json:"state"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
}

// Driver is the uniform storage contract implemented by every backend.
//
// Paths are logical relative paths; drivers normalize them and reject
// escapes above the disk root. Writes fully replace existing content and
// materialize missing parent segments implicitly. Delete is idempotent.
// Every read, stat, copy-source or move-source operation on a missing path
// fails with ErrNotFound.
type Driver interface {
	Exists(ctx context.Context, path string) (bool, error)

	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// GetStream returns a single-use reader over the file content captured
	// at call time. A missing path fails before any data is yielded.
	GetStream(ctx context.Context, path string) (io.ReadCloser, error)

	GetStats(ctx context.Context, path string) (FileStats, error)

	// Put creates or fully replaces the file at path.
	Put(ctx context.Context, path string, content []byte) error

	// PutStream consumes source exactly once and resolves only after the
	// destination write is complete. If source errors mid-read the write
	// fails and no success is reported.
	PutStream(ctx context.Context, path string, source io.Reader) error

	// PutFile moves an externally staged temporary file onto the disk,
	// optionally under destFolder.
	PutFile(ctx context.Context, file *UploadedFile, destFolder string) (*PutFileResult, error)

	// Copy writes dst with src's content, leaving src untouched.
	Copy(ctx context.Context, src, dst string) error

	// Move is Copy followed by removal of src; dst is durably written
	// before src disappears.
	Move(ctx context.Context, src, dst string) error

	// Delete removes the file at path. Missing paths and missing parents
	// are not errors.
	Delete(ctx context.Context, path string) error

	// URL returns the serving path for the file. It fails with
	// ErrFeatureDisabled unless asset serving is enabled for the disk.
	URL(path string) (string, error)

	// SignedURL is URL plus a time-limited signature query parameter.
	// A non-positive expiresIn selects the signer's default TTL.
	SignedURL(path string, expiresIn time.Duration) (string, error)
}
