package upload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"s3upload/internal/dom"
	"s3upload/internal/formpost"
	"s3upload/internal/metrics"
	"s3upload/internal/mime"
)

var (
	ErrNoConfig     = errors.New("no upload config given and no default set")
	ErrNoFileAPI    = errors.New("input exposes no file list")
	ErrNoFile       = errors.New("input has no file selected")
	ErrDetached     = errors.New("input is not attached to a document")
	ErrAlreadyEnded = errors.New("upload session already ended")
)

// DefaultStorageHost is the S3 endpoint used when Options.StorageHost is empty.
const DefaultStorageHost = "s3.amazonaws.com"

// FormatFunc builds an object key from the configured prefix and the sanitized filename.
type FormatFunc func(prefix, filename string) string

// TransferMode selects how a session moves the file. The zero value picks
// by capability.
type TransferMode int

const (
	// TransferAuto uses the native transfer when the input has a file list.
	TransferAuto TransferMode = iota
	// TransferNative requires a file list and fails with ErrNoFileAPI without one.
	TransferNative
	// TransferForm always posts through the hidden form.
	TransferForm
)

// NativeOptions are passed through to the native transfer.
type NativeOptions struct {
	Header http.Header
	// ProgressStep is the number of bytes between progress events.
	ProgressStep int64
}

// Options tune a session. The zero value uploads with DefaultFormat over an
// instrumented HTTP client, taking the protocol from the input's page.
type Options struct {
	Format      FormatFunc
	Protocol    string
	Redirect    string
	StorageHost string
	Config      *Config
	Defaults    *Defaults
	Transfer    TransferMode
	HTTPClient  *http.Client
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	Native      NativeOptions
}

// Result is what a successful upload resolves with.
type Result struct {
	URL      string
	Key      string
	Response *formpost.Response
}

var tracer = otel.Tracer("s3upload/internal/upload")

// uid is a uniqueness token for default keys. Collisions are unlikely, not impossible.
var uid = func() int64 {
	return rand.Int64N(1e10)
}

var (
	fakepath    = regexp.MustCompile(`(?i)^C:\\fakepath\\`)
	unsafeChars = strings.NewReplacer("(", "", ")", "", "%", "", "+", "", "#", "", "'", "", `"`, "")
)

// SanitizeFilename strips the C:\fakepath\ prefix browsers add to file input
// values and removes characters that break object URLs or form encoding.
func SanitizeFilename(value string) string {
	return unsafeChars.Replace(fakepath.ReplaceAllString(value, ""))
}

// DefaultFormat names objects prefix-<uid>-filename.
func DefaultFormat(prefix, filename string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, uid(), filename)
}

// BucketURL is <protocol>//<bucket>.<host>. protocol may omit the colon.
func BucketURL(protocol, bucket, host string) string {
	protocol = strings.TrimSuffix(protocol, "//")
	if !strings.HasSuffix(protocol, ":") {
		protocol += ":"
	}
	return protocol + "//" + bucket + "." + host
}

// Session is one upload of one file input.
type Session struct {
	ID string

	el        *dom.FileInput
	cfg       *Config
	opts      Options
	filename  string
	key       string
	bucketURL string
	url       string
	transfer  Transfer
	log       *zap.Logger
	ended     atomic.Bool
	events    emitter
}

// New prepares an upload of el. cfg wins over opts.Config, which wins over
// opts.Defaults. Neither el's document nor cfg is modified.
func New(el *dom.FileInput, opts *Options, cfg *Config) (*Session, error) {
	if el == nil || el.Node == nil {
		return nil, ErrNoFile
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	if cfg == nil {
		cfg = o.Config
	}
	if cfg == nil {
		cfg = o.Defaults.Get()
	}
	if cfg == nil {
		return nil, ErrNoConfig
	}
	cfg = cfg.Clone()

	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	format := o.Format
	if format == nil {
		format = DefaultFormat
	}
	if o.Protocol == "" {
		o.Protocol = el.Doc.Protocol()
	}
	if o.Protocol == "" {
		o.Protocol = "https:"
	}
	host := o.StorageHost
	if host == "" {
		host = DefaultStorageHost
	}

	s := &Session{
		ID:   uuid.NewString(),
		el:   el,
		cfg:  cfg,
		opts: o,
	}
	s.filename = SanitizeFilename(el.Value())
	s.key = format(cfg.Prefix, s.filename)
	s.bucketURL = BucketURL(o.Protocol, cfg.Bucket, host)
	base := s.bucketURL
	if cfg.CDN != "" {
		base = cfg.CDN
	}
	s.url = base + "/" + s.key
	if o.Redirect != "" {
		cfg.Redirect = o.Redirect
	}

	files, scriptable := el.Files()
	switch {
	case o.Transfer == TransferForm, o.Transfer == TransferAuto && !scriptable:
		s.transfer = &FormTransfer{
			el:     el,
			action: s.bucketURL,
			fields: policyFields(cfg, s.key, mime.ForFilename(s.filename), contentLengthPlaceholder),
			client: o.HTTPClient,
		}
	case !scriptable:
		return nil, ErrNoFileAPI
	case len(files) == 0:
		return nil, ErrNoFile
	default:
		// Native posts never redirect. The cleared value is what later
		// sessions inherit from the defaults.
		cfg.Redirect = ""
		o.Defaults.Set(cfg)
		s.transfer = &NativeTransfer{
			file:   files[0],
			action: s.bucketURL,
			key:    s.key,
			cfg:    cfg.Clone(),
			client: o.HTTPClient,
			opts:   o.Native,
		}
	}

	s.log = o.Logger.With(
		zap.String("session_id", s.ID),
		zap.String("key", s.key),
		zap.String("transfer", s.transfer.Kind()),
	)
	return s, nil
}

func (s *Session) Filename() string   { return s.filename }
func (s *Session) Key() string        { return s.key }
func (s *Session) BucketURL() string  { return s.bucketURL }
func (s *Session) URL() string        { return s.url }
func (s *Session) Transfer() Transfer { return s.transfer }

// Config returns a copy of the session's configuration.
func (s *Session) Config() *Config { return s.cfg.Clone() }

// On registers fn for events of the given kind.
func (s *Session) On(kind EventKind, fn Listener) {
	s.events.on(kind, fn)
}

// End runs the transfer and blocks until the storage service answers.
// On success the result always carries the public URL. Errors from the
// transfer are returned as they came. A session can only be ended once.
func (s *Session) End(ctx context.Context) (*Result, error) {
	if !s.ended.CompareAndSwap(false, true) {
		return nil, ErrAlreadyEnded
	}
	kind := s.transfer.Kind()

	ctx, span := tracer.Start(ctx, "upload.End", trace.WithAttributes(
		attribute.String("upload.session_id", s.ID),
		attribute.String("upload.key", s.key),
		attribute.String("upload.transfer", kind),
	))
	defer span.End()

	start := time.Now()
	s.log.Info("upload_started", zap.String("action", s.bucketURL))

	res, err := s.transfer.Submit(ctx, s.events.emit)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.opts.Metrics.Observe(kind, metrics.OutcomeError, elapsed, 0)
		s.log.Error("upload_failed", zap.Error(err), zap.Float64("latency", float64(elapsed.Milliseconds())))
		s.events.emit(Event{Kind: EventError, Err: err})
		return nil, err
	}

	out := &Result{URL: s.url, Key: s.key, Response: res}
	s.opts.Metrics.Observe(kind, metrics.OutcomeSuccess, elapsed, s.size())
	s.log.Info("upload_completed",
		zap.String("url", s.url),
		zap.Int("status", res.StatusCode),
		zap.Float64("latency", float64(elapsed.Milliseconds())),
	)
	s.events.emit(Event{Kind: EventEnd, Result: out})
	return out, nil
}

// EndFunc runs End on its own goroutine and hands the outcome to fn.
func (s *Session) EndFunc(ctx context.Context, fn func(*Result, error)) {
	go func() {
		fn(s.End(ctx))
	}()
}

func (s *Session) size() int64 {
	if sel := s.el.Selection(); len(sel) > 0 {
		return sel[0].Size()
	}
	return 0
}
