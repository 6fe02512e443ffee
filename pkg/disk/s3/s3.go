// Package s3 implements the storage driver for S3-compatible object
// stores (AWS S3, MinIO, Aliyun OSS). Parent "directories" need no
// materialization: keys are flat, so nested writes succeed as-is.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/driveyard/driveyard/pkg/disk"
)

type Driver struct {
	*disk.URLBuilder

	client *awss3.Client
	bucket string
}

func New(cfg disk.S3Config, urls *disk.URLBuilder) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("access key and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var optFns []func(*awss3.Options)
	if cfg.Endpoint != "" {
		optFns = append(optFns, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		optFns = append(optFns, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Driver{
		URLBuilder: urls,
		client:     awss3.NewFromConfig(awsCfg, optFns...),
		bucket:     cfg.Bucket,
	}, nil
}

func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return false, err
	}
	_, err = d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

func (d *Driver) Get(ctx context.Context, p string) ([]byte, error) {
	stream, err := d.GetStream(ctx, p)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	content, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return content, nil
}

func (d *Driver) GetStream(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return nil, err
	}
	output, err := d.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, disk.ErrNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return output.Body, nil
}

func (d *Driver) GetStats(ctx context.Context, p string) (disk.FileStats, error) {
	key, err := disk.Resolve(p)
	if err != nil {
		return disk.FileStats{}, err
	}
	output, err := d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return disk.FileStats{}, fmt.Errorf("%s: %w", p, disk.ErrNotFound)
		}
		return disk.FileStats{}, fmt.Errorf("head object: %w", err)
	}
	return disk.FileStats{
		Size:     aws.ToInt64(output.ContentLength),
		Modified: aws.ToTime(output.LastModified),
	}, nil
}

func (d *Driver) Put(ctx context.Context, p string, content []byte) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	size := int64(len(content))
	_, err = d.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PutStream buffers the source so the object write carries an exact
// content length and a mid-read source error never reaches the bucket.
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

	staged, err := os.Open(file.TempPath)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	err = d.PutStream(ctx, dst, staged)
	staged.Close()
	if err != nil {
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
	_, err = d.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(d.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(d.bucket + "/" + srcKey),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", src, disk.ErrNotFound)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	return nil
}

func (d *Driver) Move(ctx context.Context, src, dst string) error {
	if err := d.Copy(ctx, src, dst); err != nil {
		return err
	}
	return d.Delete(ctx, src)
}

func (d *Driver) Delete(ctx context.Context, p string) error {
	key, err := disk.Resolve(p)
	if err != nil {
		return err
	}
	// S3 DeleteObject succeeds for absent keys, which matches the
	// idempotent delete contract.
	_, err = d.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "404")
}
