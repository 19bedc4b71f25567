// Package ostore wraps the S3-compatible object store used for photo
// archives, layer backups, and data-request exports.
package ostore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object store connection settings.
type Config struct {
	// Host is the endpoint without scheme, e.g. nrs.objectstore.gov.bc.ca
	Host      string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Logger    *slog.Logger
}

// Store is a bucket-scoped object store client.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New connects to the object store. The connection is lazy; credentials are
// only exercised on the first operation.
func New(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("object store host required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket required")
	}

	client, err := minio.New(cfg.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Bucket returns the bucket this store operates on.
func (s *Store) Bucket() string { return s.bucket }

// List returns the object names under prefix, recursively.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// ListBaseNames returns the base file names of objects under prefix. The
// pipelines use this to decide which photos are already archived.
func (s *Store) ListBaseNames(ctx context.Context, prefix string) (map[string]bool, error) {
	names, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	base := make(map[string]bool, len(names))
	for _, name := range names {
		base[path.Base(name)] = true
	}
	return base, nil
}

// UploadFile uploads a local file.
func (s *Store) UploadFile(ctx context.Context, objectName, filePath, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.FPutObject(ctx, s.bucket, objectName, filePath, opts); err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	s.logger.Debug("Uploaded object", "bucket", s.bucket, "object", objectName)
	return nil
}

// Upload streams an object from a reader. Pass size -1 when unknown.
func (s *Store) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if size < 0 {
		// multipart upload needs a part size when the total is unknown
		opts.PartSize = 5 * 1024 * 1024
	}
	if _, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, opts); err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	s.logger.Debug("Uploaded object", "bucket", s.bucket, "object", objectName)
	return nil
}

// DownloadFile downloads an object to a local file path.
func (s *Store) DownloadFile(ctx context.Context, objectName, filePath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, objectName, filePath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", objectName, err)
	}
	return nil
}

// Get returns an object's content as a reader. The caller must close it.
func (s *Store) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", objectName, err)
	}
	return obj, nil
}

// Remove deletes an object.
func (s *Store) Remove(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", objectName, err)
	}
	return nil
}

// PresignedGet returns a time-limited download URL for an object.
func (s *Store) PresignedGet(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return u.String(), nil
}
