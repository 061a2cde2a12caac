package formpost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"golang.org/x/net/html"

	"s3upload/internal/dom"
	"s3upload/internal/mime"
)

// Package formpost submits HTML forms the way a browser does when it posts a
// form into a hidden frame: every successful control becomes a multipart field
// in document order and the answer is read back as a document.

// ErrNoAction is returned when a form has no action attribute.
var ErrNoAction = errors.New("form has no action")

// Field is a plain multipart field.
type Field struct {
	Name  string
	Value string
}

// FilePart is the file field of a multipart body. Size is -1 when unknown,
// in which case the request is sent chunked.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Options control a submission.
type Options struct {
	// Param parses query parameters of the final URL into Response.Params.
	// With Param off the answer is only read as document content.
	Param bool
	// Client sends the request; http.DefaultClient when nil.
	Client *http.Client
	// Files resolves the selection of a file input found in the form.
	Files func(n *html.Node) []dom.File
	// Header is added to the request.
	Header http.Header
}

// Submit serializes form and posts it to its action URL.
func Submit(ctx context.Context, form *html.Node, opts Options) (*Response, error) {
	action, _ := dom.Attr(form, "action")
	if action == "" {
		return nil, ErrNoAction
	}

	fields, files := controls(form, opts.Files)

	var part *FilePart

	// Browsers send every selected file; storage endpoints accept exactly one
	// "file" field, so only the first file control's first file is sent.
	if len(files) > 0 {
		fc := files[0]
		part = &FilePart{Field: fc.name, ContentType: mime.Default, Body: strings.NewReader("")}
		if fc.file != nil {
			rc, err := fc.file.Open()
			if err != nil {
				return nil, fmt.Errorf("open %q: %w", fc.file.Name(), err)
			}
			defer rc.Close()
			part.Filename = fc.file.Name()
			part.ContentType = mime.ForFilename(part.Filename)
			part.Size = fc.file.Size()
			part.Body = rc
		}
	}

	return Post(ctx, action, fields, part, opts)
}

type fileControl struct {
	name string
	file dom.File
}

func controls(form *html.Node, resolve func(*html.Node) []dom.File) ([]Field, []fileControl) {
	var fields []Field
	var files []fileControl
	dom.Walk(form, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "input" {
			return
		}
		name, ok := dom.Attr(n, "name")
		if !ok || name == "" {
			return
		}
		if _, disabled := dom.Attr(n, "disabled"); disabled {
			return
		}
		typ, _ := dom.Attr(n, "type")
		switch strings.ToLower(typ) {
		case "file":
			fc := fileControl{name: name}
			if resolve != nil {
				if sel := resolve(n); len(sel) > 0 {
					fc.file = sel[0]
				}
			}
			files = append(files, fc)
		case "checkbox", "radio":
			if _, checked := dom.Attr(n, "checked"); !checked {
				return
			}
			fallthrough
		default:
			v, _ := dom.Attr(n, "value")
			fields = append(fields, Field{Name: name, Value: v})
		}
	})
	return fields, files
}

// Post sends fields followed by an optional file part as multipart/form-data.
// When the file size is known the request carries an exact Content-Length.
func Post(ctx context.Context, action string, fields []Field, file *FilePart, opts Options) (*Response, error) {
	body, contentType, length, err := encode(fields, file)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = length

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post form: %w", err)
	}
	defer resp.Body.Close()

	return readResponse(resp, opts.Param)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encode lays out the multipart body as head, file bytes and tail so the
// total length is known without buffering the file.
func encode(fields []Field, file *FilePart) (io.Reader, string, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, "", 0, fmt.Errorf("write field %q: %w", f.Name, err)
		}
	}

	if file == nil {
		if err := mw.Close(); err != nil {
			return nil, "", 0, err
		}
		return bytes.NewReader(buf.Bytes()), mw.FormDataContentType(), int64(buf.Len()), nil
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(file.Field), quoteEscaper.Replace(file.Filename)))
	ct := file.ContentType
	if ct == "" {
		ct = mime.Default
	}
	h.Set("Content-Type", ct)
	if _, err := mw.CreatePart(h); err != nil {
		return nil, "", 0, fmt.Errorf("create file part: %w", err)
	}
	headLen := buf.Len()
	if err := mw.Close(); err != nil {
		return nil, "", 0, err
	}
	all := buf.Bytes()
	head, tail := all[:headLen], all[headLen:]

	length := int64(-1)
	if file.Size >= 0 {
		length = int64(len(head)) + file.Size + int64(len(tail))
	}
	r := io.MultiReader(bytes.NewReader(head), file.Body, bytes.NewReader(tail))
	return r, mw.FormDataContentType(), length, nil
}
