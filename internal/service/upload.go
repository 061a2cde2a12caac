package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"s3upload/internal/dom"
	"s3upload/internal/formpost"
	"s3upload/internal/storage"
	"s3upload/internal/upload"
)

var (
	ErrPathRequired      = errors.New("path is required")
	ErrVerifyUnavailable = errors.New("verification requested but no storage configured")
	ErrVerifyMismatch    = errors.New("stored object does not match uploaded file")
)

// DefaultSelector matches the first file input of a page.
const DefaultSelector = `input[type="file"]`

// UploadRequest describes one local file to upload through a page's file input.
type UploadRequest struct {
	Path string
	// Page is the HTML page holding the file input; dom.DefaultPage when nil.
	Page     io.Reader
	PageURL  string
	Selector string
	// Fallback hides the input's file list so the hidden-form transfer is used.
	Fallback bool
	Verify   bool

	Prefix   string
	CDN      string
	Protocol string
	Redirect string
}

// UploadResult is the service-level DTO for a finished upload.
type UploadResult struct {
	URL      string              `json:"url"`
	Key      string              `json:"key"`
	Transfer string              `json:"transfer"`
	Status   int                 `json:"status"`
	ETag     string              `json:"etag,omitempty"`
	Verified *storage.ObjectInfo `json:"verified,omitempty"`
}

// UploadService defines the use cases for uploading local files.
type UploadService interface {
	// Upload sends the file at req.Path and, when asked, reads the object back.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// uploadService is a concrete implementation of UploadService.
type uploadService struct {
	defaults *upload.Defaults
	store    storage.Storage
	base     upload.Options
	log      *zap.Logger
}

// NewUploadService constructs a new UploadService. store may be nil when
// verification is never requested.
func NewUploadService(defaults *upload.Defaults, store storage.Storage, base upload.Options) UploadService {
	log := base.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &uploadService{defaults: defaults, store: store, base: base, log: log}
}

func (s *uploadService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, ErrPathRequired
	}
	if req.Verify && s.store == nil {
		return nil, ErrVerifyUnavailable
	}

	cfg := s.defaults.Get()
	if cfg == nil {
		return nil, upload.ErrNoConfig
	}
	if req.Prefix != "" {
		cfg.Prefix = req.Prefix
	}
	if req.CDN != "" {
		cfg.CDN = req.CDN
	}

	file, err := dom.NewLocalFile(req.Path)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page == nil {
		page = strings.NewReader(dom.DefaultPage)
	}
	doc, err := dom.Parse(page, req.PageURL)
	if err != nil {
		return nil, err
	}
	selector := req.Selector
	if selector == "" {
		selector = DefaultSelector
	}
	in, err := doc.FileInput(selector, !req.Fallback, file)
	if err != nil {
		return nil, err
	}

	opts := s.base
	opts.Defaults = s.defaults
	opts.Protocol = firstNonEmpty(req.Protocol, opts.Protocol)
	opts.Redirect = firstNonEmpty(req.Redirect, opts.Redirect)

	sess, err := upload.New(in, &opts, cfg)
	if err != nil {
		return nil, fmt.Errorf("prepare upload: %w", err)
	}
	sess.On(upload.EventProgress, func(ev upload.Event) {
		s.log.Debug("upload_progress",
			zap.String("session_id", sess.ID),
			zap.Int64("sent", ev.Sent),
			zap.Int64("total", ev.Total),
		)
	})

	res, err := sess.End(ctx)
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", file.Name(), err)
	}

	out := &UploadResult{
		URL:      res.URL,
		Key:      res.Key,
		Transfer: sess.Transfer().Kind(),
	}
	if res.Response != nil {
		out.Status = res.Response.StatusCode
		out.ETag = res.Response.ETag()
	}

	if req.Verify {
		info, err := s.verify(ctx, res.Key, file)
		if err != nil {
			return out, err
		}
		out.Verified = &info
	}
	return out, nil
}

// verify reads the object back through its public access and compares it
// with the local file: size first, then content.
func (s *uploadService) verify(ctx context.Context, key string, file dom.File) (storage.ObjectInfo, error) {
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return info, fmt.Errorf("verify upload: %w", err)
	}
	if info.Size != file.Size() {
		return info, fmt.Errorf("%w: size %d, want %d", ErrVerifyMismatch, info.Size, file.Size())
	}

	remote, _, err := s.store.Get(ctx, key)
	if err != nil {
		return info, fmt.Errorf("verify upload: %w", err)
	}
	defer remote.Close()
	got, err := digest(remote)
	if err != nil {
		return info, fmt.Errorf("verify upload: read %q: %w", key, err)
	}

	local, err := file.Open()
	if err != nil {
		return info, fmt.Errorf("verify upload: %w", err)
	}
	defer local.Close()
	want, err := digest(local)
	if err != nil {
		return info, fmt.Errorf("verify upload: read %q: %w", file.Name(), err)
	}

	if !bytes.Equal(got, want) {
		return info, fmt.Errorf("%w: content differs", ErrVerifyMismatch)
	}
	return info, nil
}

func digest(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Preview computes the key and public URL an upload would get for an input
// whose value is value, without sending anything.
func Preview(defaults *upload.Defaults, opts upload.Options, value string) (key, url string, err error) {
	in := dom.NewLegacyFileInput(dom.Create("input", map[string]string{"type": "file", "value": value}))
	opts.Defaults = defaults
	sess, err := upload.New(in, &opts, nil)
	if err != nil {
		return "", "", err
	}
	return sess.Key(), sess.URL(), nil
}

// StatusError unwraps a storage rejection from err, if there is one.
func StatusError(err error) (*formpost.StatusError, bool) {
	var se *formpost.StatusError
	ok := errors.As(err, &se)
	return se, ok
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
