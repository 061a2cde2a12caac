package dom

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNotFileInput is returned when a selector does not match an <input type="file">.
var ErrNotFileInput = errors.New("selector does not match a file input")

// DefaultPage is used when no page is supplied: one form with one file input.
const DefaultPage = `<!DOCTYPE html>
<html><head><title>upload</title></head>
<body><form id="upload"><input type="file" name="upload"></form></body>
</html>`

// Document is a parsed page and the URL it was loaded from.
type Document struct {
	Root *html.Node
	URL  *url.URL
}

// Parse reads an HTML page. pageURL may be empty.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	doc := &Document{Root: root}
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("parse page url: %w", err)
		}
		doc.URL = u
	}
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(page, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(page), pageURL)
}

// Protocol returns the page scheme with a trailing colon, or "" when unknown.
func (d *Document) Protocol() string {
	if d == nil || d.URL == nil || d.URL.Scheme == "" {
		return ""
	}
	return d.URL.Scheme + ":"
}

// FileInput finds the first element matching selector and binds files to it.
// scriptable controls whether the input exposes a file list.
func (d *Document) FileInput(selector string, scriptable bool, files ...File) (*FileInput, error) {
	sel := goquery.NewDocumentFromNode(d.Root).Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFileInput, selector)
	}
	n := sel.Get(0)
	if t, _ := Attr(n, "type"); n.Data != "input" || !strings.EqualFold(t, "file") {
		return nil, fmt.Errorf("%w: %q", ErrNotFileInput, selector)
	}

	in := &FileInput{Node: n, Doc: d, scriptable: scriptable}
	in.Select(files...)
	return in, nil
}

// Render serializes the document, mostly for tests and debugging.
func (d *Document) Render() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, d.Root); err != nil {
		return "", err
	}
	return b.String(), nil
}
