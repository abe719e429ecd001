package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vendorquery-backend/internal/shared/storage/object"
	"vendorquery-backend/internal/shared/telemetry"
)

const uriScheme = "s3://"

// Config holds the connection settings for a MinIO (or other S3-compatible) endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Store implements ObjectStore on MinIO.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects to MinIO and creates the bucket when it does not exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
		telemetry.Info("minio.bucket_created", map[string]any{"bucket": cfg.Bucket})
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

// PresignPut returns a presigned PUT URL for the object.
func (s *Store) PresignPut(ctx context.Context, storageKey, _ string, expires time.Duration) (object.Destination, error) {
	objectKey := objectPath(s.prefix, storageKey)
	u, err := s.client.PresignedPutObject(ctx, s.bucket, objectKey, expires)
	if err != nil {
		return object.Destination{}, fmt.Errorf("minio presign put bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return object.Destination{URL: u.String(), Method: http.MethodPut}, nil
}

// ResolveURI confirms the object exists and returns its s3:// URI.
func (s *Store) ResolveURI(ctx context.Context, storageKey string) (string, error) {
	objectKey := objectPath(s.prefix, storageKey)
	if _, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: minio bucket=%s key=%s", object.ErrNotFound, s.bucket, objectKey)
		}
		return "", fmt.Errorf("minio stat object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return uriScheme + s.bucket + "/" + objectKey, nil
}

// Owns reports whether uri names an object in this store's bucket.
func (s *Store) Owns(uri string) bool {
	bucket, _, ok := parseURI(uri)
	return ok && bucket == s.bucket
}

// OpenURI opens an object by its s3:// URI.
func (s *Store) OpenURI(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, objectKey, ok := parseURI(uri)
	if !ok || bucket != s.bucket {
		return nil, fmt.Errorf("uri %q does not belong to bucket %s", uri, s.bucket)
	}
	obj, err := s.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object bucket=%s key=%s: %w", bucket, objectKey, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts reading.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: minio bucket=%s key=%s", object.ErrNotFound, bucket, objectKey)
		}
		return nil, fmt.Errorf("minio stat object bucket=%s key=%s: %w", bucket, objectKey, err)
	}
	return obj, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func objectPath(prefix, key string) string {
	cleanKey := strings.TrimLeft(key, "/")
	if prefix == "" {
		return cleanKey
	}
	return prefix + "/" + cleanKey
}

func parseURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, uriScheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

var _ object.ObjectStore = (*Store)(nil)
