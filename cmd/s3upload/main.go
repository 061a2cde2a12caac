package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"s3upload/internal/config"
	"s3upload/internal/logging"
	"s3upload/internal/metrics"
	tracing "s3upload/internal/otel"
	"s3upload/internal/service"
	"s3upload/internal/storage"
	"s3upload/internal/upload"
)

func main() {
	a := &app{}
	err := newRootCmd(a, os.Stdout).Execute()
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by all commands.
type app struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	defaults *upload.Defaults
	base     upload.Options
	svc      service.UploadService
	reg      *prometheus.Registry
	shutdown func(context.Context) error
}

// init wires the app from the environment. Fields already set are kept.
func (a *app) init(ctx context.Context) error {
	if a.svc != nil {
		return nil
	}

	// Load configuration from environment variables (.env auto-loaded if present)
	a.cfg = config.Load()
	if err := a.cfg.S3.ResolveSecrets(); err != nil {
		return err
	}
	if err := a.cfg.S3.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(a.cfg.Log.Level, a.cfg.Log.Format)
	if err != nil {
		return err
	}
	a.log = log

	a.shutdown, err = tracing.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	a.reg = prometheus.NewRegistry()
	col, err := metrics.New(a.reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	s3 := a.cfg.S3
	a.defaults = upload.NewDefaults(&upload.Config{
		Bucket:    s3.Bucket,
		Key:       s3.AccessKeyID,
		ACL:       s3.ACL,
		Policy:    s3.Policy,
		Signature: s3.Signature,
		Prefix:    s3.Prefix,
		CDN:       s3.CDN,
		Redirect:  s3.Redirect,
	})
	a.base = upload.Options{
		Protocol:    s3.Protocol,
		StorageHost: s3.StorageHost,
		Logger:      log,
		Metrics:     col,
	}

	// Verification is optional; a broken verify endpoint only disables it.
	var store storage.Storage
	if a.cfg.Verify.Endpoint != "" {
		store, err = storage.NewMinIO(a.cfg.Verify, s3.Bucket, otelhttp.NewTransport(http.DefaultTransport))
		if err != nil {
			log.Warn("verify_storage_unavailable", zap.Error(err))
			store = nil
		}
	}

	a.svc = service.NewUploadService(a.defaults, store, a.base)
	return nil
}

// serveMetrics exposes the registry while a command runs. The returned func stops it.
func (a *app) serveMetrics() func() {
	if a.cfg == nil || a.cfg.MetricsAddr == "" || a.reg == nil {
		return func() {}
	}
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics_server_stopped", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Warn("metrics_server_shutdown_failed", zap.Error(err))
		}
	}
}

func (a *app) timeout() time.Duration {
	if a.cfg == nil || a.cfg.UploadTimeoutSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.cfg.UploadTimeoutSec) * time.Second
}

func (a *app) close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil && a.log != nil {
			a.log.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
