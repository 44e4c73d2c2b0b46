// Package upload copies run artifacts to S3.
package upload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts local files into a bucket.
type Uploader struct {
	client S3API
}

// NewUploader creates an uploader over client.
func NewUploader(client S3API) *Uploader {
	return &Uploader{client: client}
}

// FromConfig creates an uploader for cfg, optionally pinned to region.
func FromConfig(cfg aws.Config, region string) *Uploader {
	return NewUploader(s3.NewFromConfig(cfg, func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	}))
}

// UploadError identifies the object that failed to upload.
type UploadError struct {
	Bucket string
	Key    string
	Path   string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("s3 upload failed bucket=%s key=%s path=%s: %v", e.Bucket, e.Key, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UploadFile puts the file at p under key.
func (u *Uploader) UploadFile(ctx context.Context, bucket, key, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return &UploadError{Bucket: bucket, Key: key, Path: p, Err: err}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return &UploadError{Bucket: bucket, Key: key, Path: p, Err: err}
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return &UploadError{Bucket: bucket, Key: key, Path: p, Err: err}
	}
	return nil
}

// UploadTree uploads every regular file under root to prefix/<relative path>,
// using slash separated keys. It stops at the first failure.
func (u *Uploader) UploadTree(ctx context.Context, bucket, prefix, root string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		log.Info().Str("file", rel).Str("bucket", bucket).Str("key", key).Msg("uploading")
		if err := u.UploadFile(ctx, bucket, key, p); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("upload %s: %w", root, err)
	}
	return uploaded, nil
}
