// Package dbstore implements the storage driver on a relational database,
// one row per stored file. It shares one gorm.DB across all database disks
// and scopes rows by disk name.
package dbstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driveyard/driveyard/pkg/disk"
)

// StoredFile is the row model for file content and metadata.
type StoredFile struct {
	ID       uint   `gorm:"primaryKey"`
	Disk     string `gorm:"size:64;uniqueIndex:idx_disk_path"`
	Path     string `gorm:"size:512;uniqueIndex:idx_disk_path"`
	Content  []byte
	Size     int64
	Modified time.Time
}

func (StoredFile) TableName() string {
	return "stored_files"
}

type Driver struct {
	*disk.URLBuilder

	db       *gorm.DB
	diskName string
}

func New(db *gorm.DB, diskName string, urls *disk.URLBuilder) (*Driver, error) {
	if db == nil {
		return nil, fmt.Errorf("database disk %q requires a configured database", diskName)
	}
	if err := db.AutoMigrate(&StoredFile{}); err != nil {
		return nil, fmt.Errorf("migrate stored_files: %w", err)
	}
	return &Driver{URLBuilder: urls, db: db, diskName: diskName}, nil
}

func (d *Driver) scope(tx *gorm.DB, key string) *gorm.DB {
	return tx.Where("disk = ? AND path = ?", d.diskName, key)
}

func (d *Driver) lookup(ctx context.Context, key string) (*StoredFile, error) {
	var row StoredFile
	err := d.scope(d.db.WithContext(ctx), key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", key, disk.ErrNotFound)
		}
		return nil, fmt.Errorf("query stored file: %w", err)
	}
	return &row, nil
}

func (d *Driver) upsert(tx *gorm.DB, key string, content []byte) error {
	row := StoredFile{
		Disk:     d.diskName,
		Path:     key,
		Content:  content,
		Size:     int64(len(content)),
		Modified: time.Now(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "disk"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "size", "modified"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write stored file: %w", err)
	}
	return nil
}

func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return false, err
	}
	var count int64
	if err := d.scope(d.db.WithContext(ctx).Model(&StoredFile{}), key).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count stored file: %w", err)
	}
	return count > 0, nil
}

func (d *Driver) Get(ctx context.Context, p string) ([]byte, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return nil, err
	}
	row, err := d.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	return row.Content, nil
}

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
	row, err := d.lookup(ctx, key)
	if err != nil {
		return disk.FileStats{}, err
	}
	return disk.FileStats{Size: row.Size, Modified: row.Modified}, nil
}

func (d *Driver) Put(ctx context.Context, p string, content []byte) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	return d.upsert(d.db.WithContext(ctx), key, content)
}

func (d *Driver) PutStream(ctx context.Context, p string, source io.Reader) error {
	content, err := io.ReadAll(source)
	if err != nil {
		return fmt.Errorf("read source stream: %w", err)
	}
	return d.Put(ctx, p, content)
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
	row, err := d.lookup(ctx, srcKey)
	if err != nil {
		return err
	}
	return d.upsert(d.db.WithContext(ctx), dstKey, row.Content)
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
	row, err := d.lookup(ctx, srcKey)
	if err != nil {
		return err
	}
	// The destination row is committed before the source row goes away;
	// the transaction never exposes a state with neither present.
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.upsert(tx, dstKey, row.Content); err != nil {
			return err
		}
		if err := d.scope(tx, srcKey).Delete(&StoredFile{}).Error; err != nil {
			return fmt.Errorf("delete source row: %w", err)
		}
		return nil
	})
}

func (d *Driver) Delete(ctx context.Context, p string) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	if err := d.scope(d.db.WithContext(ctx), key).Delete(&StoredFile{}).Error; err != nil {
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}
