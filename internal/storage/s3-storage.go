package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/BerylCAtieno/docmind-api/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// documentBucket stores session PDFs in one S3-compatible bucket.
type documentBucket struct {
	client *minio.Client
	bucket string
}

func NewS3Storage(ctx context.Context, cfg *config.Config) (Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for %s: %w", cfg.S3Endpoint, err)
	}

	b := &documentBucket{client: client, bucket: cfg.S3BucketName}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *documentBucket) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to look up document bucket %q: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create document bucket %q: %w", b.bucket, err)
	}
	return nil
}

func (b *documentBucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: inlineDisposition(key),
	}
	if _, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("failed to store document %s: %w", key, err)
	}
	return nil
}

// Download reads the whole document. GetObject is lazy, so a missing key
// surfaces on the first read.
func (b *documentBucket) Download(ctx context.Context, key string) ([]byte, error) {
	object, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open document %s: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	return data, nil
}

func (b *documentBucket) Delete(ctx context.Context, key string) error {
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

func (b *documentBucket) Ping(ctx context.Context) error {
	if _, err := b.client.BucketExists(ctx, b.bucket); err != nil {
		return fmt.Errorf("failed to reach document bucket %q: %w", b.bucket, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// inlineDisposition names the object after the uploaded file, the last key segment.
func inlineDisposition(key string) string {
	name := path.Base(key)
	if name == "." || name == "/" {
		return "inline"
	}
	return mime.FormatMediaType("inline", map[string]string{"filename": name})
}
