package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"s3upload/internal/config"
)

// minioStorage implements Storage against an S3-compatible endpoint (AWS S3, MinIO, ...).
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates an anonymous client for cfg.Bucket. No credentials are
// used and nothing is checked over the network here.
func NewMinIO(cfg config.VerifyConfig, bucket string, transport http.RoundTripper) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("verify endpoint is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStatic("", "", "", credentials.SignatureAnonymous),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &minioStorage{client: cli, bucket: bucket}, nil
}

// Stat issues a HEAD for key.
func (m *minioStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	st, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapErr(key, err)
	}
	return toInfo(key, st), nil
}

// Get downloads an object content as a ReadCloser along with basic info.
func (m *minioStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapErr(key, err)
	}
	// Fetch stat to populate info; avoid reading content into memory.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, mapErr(key, err)
	}
	return obj, toInfo(key, st), nil
}

func toInfo(key string, st minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     st.UserMetadata,
	}
}

func mapErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.Code == "NoSuchKey":
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	case resp.StatusCode == http.StatusForbidden:
		// Anonymous readers get 403 for missing keys on buckets without ListBucket.
		return fmt.Errorf("%w: %q (access denied)", ErrNotFound, key)
	}
	return fmt.Errorf("stat %q: %w", key, err)
}
