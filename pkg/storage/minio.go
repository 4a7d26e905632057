// Package storage resolves message attachments held in MinIO.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds MinIO connection configuration
type Config struct {
	Endpoint  string
	PublicURL string // external base URL; empty means presigned URLs
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// MinIOStorage checks attachment keys and builds download URLs. Uploads go
// through the document service; this package never writes objects.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	urlExpiry time.Duration
}

// NewMinIO connects to MinIO and verifies the bucket exists
func NewMinIO(ctx context.Context, cfg Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinIOStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
		urlExpiry: expiry,
	}, nil
}

// Exists reports whether objectKey is present in the bucket
func (s *MinIOStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

// URL returns a download URL for objectKey: a public URL when one is
// configured, otherwise a presigned GET
func (s *MinIOStorage) URL(ctx context.Context, objectKey string) (string, error) {
	if s.publicURL != "" {
		return PublicURL(s.publicURL, s.bucket, objectKey), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// PublicURL joins the public base, bucket and key
func PublicURL(base, bucket, objectKey string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, strings.TrimLeft(objectKey, "/"))
}
