package formpost

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/minio/minio-go/v7"
)

// maxBody caps how much of an answer document is read.
const maxBody = 1 << 20

// Response is what came back after the form was posted.
type Response struct {
	StatusCode int
	Header     http.Header
	// URL is the final address after redirects, such as a success_action_redirect target.
	URL string
	// Params holds the final URL's query when Options.Param is set.
	Params url.Values
	// Body is the text content of the answer document.
	Body string
	// Fields maps lowercase leaf element names of the answer to their text,
	// e.g. location, bucket, key and etag from an S3 PostResponse.
	Fields map[string]string
}

// Location is where the stored object lives, when the answer says so.
func (r *Response) Location() string {
	if r == nil {
		return ""
	}
	if v := r.Fields["location"]; v != "" {
		return v
	}
	return r.Header.Get("Location")
}

// ETag of the stored object, when the answer says so.
func (r *Response) ETag() string {
	if r == nil {
		return ""
	}
	if v := r.Header.Get("ETag"); v != "" {
		return strings.Trim(v, `"`)
	}
	return strings.Trim(r.Fields["etag"], `"`)
}

// StatusError reports a rejected submission. S3 carries the parsed error
// document when the service sent one.
type StatusError struct {
	StatusCode int
	S3         minio.ErrorResponse
	Body       string
}

func (e *StatusError) Error() string {
	if e.S3.Code != "" {
		return fmt.Sprintf("storage responded %d: %s: %s", e.StatusCode, e.S3.Code, e.S3.Message)
	}
	return fmt.Sprintf("storage responded %d", e.StatusCode)
}

func readResponse(resp *http.Response, param bool) (*Response, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		se := &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		if xml.Unmarshal(raw, &se.S3) == nil {
			se.S3.StatusCode = resp.StatusCode
		}
		return nil, se
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Fields:     map[string]string{},
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
		if param {
			out.Params = resp.Request.URL.Query()
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	out.Body = strings.TrimSpace(doc.Find("body").Text())
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		out.Fields[goquery.NodeName(s)] = strings.TrimSpace(s.Text())
	})
	return out, nil
}
