package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"s3upload/internal/config"
	"s3upload/internal/service"
	"s3upload/internal/service/mocks"
	"s3upload/internal/upload"
)

func testApp(svc service.UploadService) *app {
	return &app{
		svc: svc,
		defaults: upload.NewDefaults(&upload.Config{
			Bucket: "b",
			Key:    "AK",
			Prefix: "uploads",
		}),
	}
}

func run(a *app, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(a, &out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPutCmd(t *testing.T) {
	mSvc := new(mocks.MockUploadService)
	mSvc.On("Upload", mock.Anything, service.UploadRequest{
		Path:     "report.txt",
		Fallback: true,
		Verify:   true,
		Prefix:   "docs",
		CDN:      "https://cdn.example.com",
		Protocol: "http:",
		Redirect: "https://app.example.com/done",
		Selector: "#f",
	}).Return(&service.UploadResult{URL: "https://cdn.example.com/docs-1-report.txt"}, nil)

	out, err := run(testApp(mSvc), "put", "report.txt",
		"--fallback", "--verify",
		"--prefix", "docs",
		"--cdn", "https://cdn.example.com",
		"--protocol", "http:",
		"--redirect", "https://app.example.com/done",
		"--selector", "#f",
	)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/docs-1-report.txt\n", out)
	mSvc.AssertExpectations(t)
}

func TestPutCmd_JSON(t *testing.T) {
	mSvc := new(mocks.MockUploadService)
	mSvc.On("Upload", mock.Anything, mock.Anything).Return(&service.UploadResult{
		URL:      "https://b.s3.amazonaws.com/k",
		Key:      "k",
		Transfer: upload.KindNative,
		Status:   http.StatusNoContent,
	}, nil)

	out, err := run(testApp(mSvc), "put", "a.png", "--json")
	require.NoError(t, err)

	var got service.UploadResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "k", got.Key)
	assert.Equal(t, upload.KindNative, got.Transfer)
	assert.Equal(t, http.StatusNoContent, got.Status)
}

func TestPutCmd_Page(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<input type="file" name="f">`), 0o600))

	mSvc := new(mocks.MockUploadService)
	mSvc.On("Upload", mock.Anything, mock.MatchedBy(func(req service.UploadRequest) bool {
		return req.Page != nil && req.PageURL == "https://app.example.com/"
	})).Return(&service.UploadResult{URL: "u"}, nil)

	_, err := run(testApp(mSvc), "put", "a.png", "--page", page, "--page-url", "https://app.example.com/")
	require.NoError(t, err)
	mSvc.AssertExpectations(t)
}

func TestPutCmd_Errors(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		mSvc := new(mocks.MockUploadService)
		mSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
		_, err := run(testApp(mSvc), "put", "a.png")
		assert.EqualError(t, err, "boom")
	})

	t.Run("missing page", func(t *testing.T) {
		mSvc := new(mocks.MockUploadService)
		_, err := run(testApp(mSvc), "put", "a.png", "--page", filepath.Join(t.TempDir(), "nope.html"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open page")
		mSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("needs one argument", func(t *testing.T) {
		_, err := run(testApp(new(mocks.MockUploadService)), "put")
		assert.Error(t, err)
	})
}

func TestKeyCmd(t *testing.T) {
	out, err := run(testApp(new(mocks.MockUploadService)), "key", "My File (1).png")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Regexp(t, `^uploads-\d+-My File 1\.png$`, string(lines[0]))
	assert.Equal(t, "https://b.s3.amazonaws.com/"+string(lines[0]), string(lines[1]))
}

func TestAppTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Minute, (&app{}).timeout())
	a := &app{cfg: &config.AppConfig{UploadTimeoutSec: 30}}
	assert.Equal(t, 30*time.Second, a.timeout())
}

func TestAppInit_InvalidConfig(t *testing.T) {
	t.Setenv("S3_BUCKET", "")
	a := &app{}
	err := a.init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestServeMetrics(t *testing.T) {
	t.Run("disabled without address", func(t *testing.T) {
		stop := (&app{cfg: &config.AppConfig{}}).serveMetrics()
		stop()
	})

	t.Run("stops cleanly", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		a := &app{
			cfg: &config.AppConfig{MetricsAddr: "127.0.0.1:0"},
			log: zap.New(core),
			reg: prometheus.NewRegistry(),
		}
		stop := a.serveMetrics()
		stop()
		assert.Zero(t, logs.FilterMessage("metrics_server_shutdown_failed").Len())
	})
}
