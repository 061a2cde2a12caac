package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3upload/internal/config"
)

func publicBucket(t *testing.T) config.VerifyConfig {
	t.Helper()
	modified := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "requests must be anonymous")
		switch r.URL.Path {
		case "/bucket/uploads-1-a.png":
			w.Header().Set("Content-Length", "5")
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("ETag", `"e1"`)
			w.Header().Set("Last-Modified", modified)
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				io.WriteString(w, "hello")
			}
		case "/bucket/private":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return config.VerifyConfig{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
	}
}

func TestNewMinIO_Validation(t *testing.T) {
	_, err := NewMinIO(config.VerifyConfig{}, "bucket", nil)
	assert.Error(t, err)

	_, err = NewMinIO(config.VerifyConfig{Endpoint: "localhost:9000"}, "", nil)
	assert.Error(t, err)

	s, err := NewMinIO(config.VerifyConfig{Endpoint: "localhost:9000"}, "bucket", nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestMinIO_Stat(t *testing.T) {
	s, err := NewMinIO(publicBucket(t), "bucket", nil)
	require.NoError(t, err)
	ctx := context.Background()

	info, err := s.Stat(ctx, "uploads-1-a.png")
	require.NoError(t, err)
	assert.Equal(t, "uploads-1-a.png", info.Key)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "e1", info.ETag)

	_, err = s.Stat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Stat(ctx, "private")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinIO_Get(t *testing.T) {
	s, err := NewMinIO(publicBucket(t), "bucket", nil)
	require.NoError(t, err)

	rc, info, err := s.Get(context.Background(), "uploads-1-a.png")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(5), info.Size)

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}
