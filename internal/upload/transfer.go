package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"golang.org/x/net/html"

	"s3upload/internal/dom"
	"s3upload/internal/formpost"
	"s3upload/internal/mime"
)

// Transfer moves the selected file to the bucket. A session picks one
// implementation when it is created and never switches.
type Transfer interface {
	// Kind is "native" or "form".
	Kind() string
	Submit(ctx context.Context, emit func(Event)) (*formpost.Response, error)
}

const (
	KindNative = "native"
	KindForm   = "form"
)

// contentLengthPlaceholder is sent as the Content-Length form field by the
// form transfer. It is not the file size.
const contentLengthPlaceholder = "1"

// policyFields lists the signed form fields in wire order, skipping empty values.
func policyFields(cfg *Config, key, contentType, contentLength string) []formpost.Field {
	all := []formpost.Field{
		{Name: "key", Value: key},
		{Name: "AWSAccessKeyId", Value: cfg.Key},
		{Name: "acl", Value: cfg.ACL},
		{Name: "success_action_redirect", Value: cfg.Redirect},
		{Name: "policy", Value: cfg.Policy},
		{Name: "signature", Value: cfg.Signature},
		{Name: "Content-Type", Value: contentType},
		{Name: "Content-Length", Value: contentLength},
	}
	names := make([]string, 0, len(cfg.Fields))
	for k := range cfg.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		all = append(all, formpost.Field{Name: k, Value: cfg.Fields[k]})
	}

	out := all[:0]
	for _, f := range all {
		if f.Value == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FormTransfer posts a hidden form holding the original input element.
// It works without a file list because the form carries the input itself.
type FormTransfer struct {
	el     *dom.FileInput
	action string
	fields []formpost.Field
	client *http.Client
}

func (t *FormTransfer) Kind() string { return KindForm }

// Form builds the hidden form without the file input.
func (t *FormTransfer) Form() *html.Node {
	form := dom.Create("form", map[string]string{
		"accept-charset": "",
		"enctype":        "multipart/form-data",
		"method":         "POST",
		"action":         t.action,
	})
	for _, f := range t.fields {
		form.AppendChild(dom.Create("input", map[string]string{
			"type":  "hidden",
			"value": f.Value,
			"name":  f.Name,
		}))
	}
	return form
}

func (t *FormTransfer) Submit(ctx context.Context, _ func(Event)) (*formpost.Response, error) {
	form := t.Form()

	release, err := dom.Relocate(t.el.Node, form, "file")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetached, err)
	}
	defer release()

	return formpost.Submit(ctx, form, formpost.Options{
		Param:  false,
		Client: t.client,
		Files: func(n *html.Node) []dom.File {
			if n == t.el.Node {
				return t.el.Selection()
			}
			return nil
		},
	})
}

// NativeTransfer streams the file from its file list, reporting progress.
type NativeTransfer struct {
	file   dom.File
	action string
	key    string
	cfg    *Config
	client *http.Client
	opts   NativeOptions
}

func (t *NativeTransfer) Kind() string { return KindNative }

// File is the file being sent.
func (t *NativeTransfer) File() dom.File { return t.file }

func (t *NativeTransfer) contentType() string {
	name := t.file.Name()
	if ct := mime.ForFilename(name); ct != mime.Default {
		return ct
	}
	rc, err := t.file.Open()
	if err != nil {
		return mime.Default
	}
	defer rc.Close()
	return mime.Detect(rc)
}

func (t *NativeTransfer) Submit(ctx context.Context, emit func(Event)) (*formpost.Response, error) {
	ct := t.contentType()
	fields := policyFields(t.cfg, t.key, ct, "")

	rc, err := t.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", t.file.Name(), err)
	}
	defer rc.Close()

	size := t.file.Size()
	body := &progressReader{r: rc, total: size, step: t.opts.ProgressStep, emit: emit}

	return formpost.Post(ctx, t.action, fields, &formpost.FilePart{
		Field:       "file",
		Filename:    t.file.Name(),
		ContentType: ct,
		Size:        size,
		Body:        body,
	}, formpost.Options{Client: t.client, Header: t.opts.Header})
}

const defaultProgressStep = 64 << 10

type progressReader struct {
	r     io.Reader
	total int64
	step  int64
	sent  int64
	last  int64
	emit  func(Event)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	step := p.step
	if step <= 0 {
		step = defaultProgressStep
	}
	if p.emit != nil && n > 0 && (p.sent-p.last >= step || p.sent == p.total) {
		p.last = p.sent
		ev := Event{Kind: EventProgress, Sent: p.sent, Total: p.total}
		if p.total > 0 {
			ev.Percent = float64(p.sent) / float64(p.total) * 100
		}
		p.emit(ev)
	}
	return n, err
}
