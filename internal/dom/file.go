package dom

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
)

// File is one entry of a file input's selection.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// LocalFile is a File backed by a path on disk.
type LocalFile struct {
	path string
	size int64
}

// NewLocalFile stats path and returns a File for it.
func NewLocalFile(path string) (*LocalFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}
	return &LocalFile{path: path, size: st.Size()}, nil
}

func (f *LocalFile) Name() string { return filepath.Base(f.path) }
func (f *LocalFile) Size() int64  { return f.size }

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// MemFile is an in-memory File.
type MemFile struct {
	name string
	data []byte
}

func NewMemFile(name string, data []byte) *MemFile {
	return &MemFile{name: name, data: data}
}

func (f *MemFile) Name() string { return f.name }
func (f *MemFile) Size() int64  { return int64(len(f.data)) }

func (f *MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// FileInput is an <input type="file"> element together with the files the
// user picked. Scripted access to the selection is optional: legacy inputs
// still submit their files through a form but expose no file list.
type FileInput struct {
	Node *html.Node
	Doc  *Document

	selection  []File
	scriptable bool
}

// NewFileInput binds a selection to n and exposes it as a file list.
func NewFileInput(n *html.Node, files ...File) *FileInput {
	return &FileInput{Node: n, selection: files, scriptable: true}
}

// NewLegacyFileInput binds a selection to n without a file list.
func NewLegacyFileInput(n *html.Node, files ...File) *FileInput {
	return &FileInput{Node: n, selection: files}
}

// Value is the input's value attribute, as a browser reports it.
func (in *FileInput) Value() string {
	v, _ := Attr(in.Node, "value")
	return v
}

// Files returns the file list; ok is false when the input has none to offer.
func (in *FileInput) Files() (files []File, ok bool) {
	if !in.scriptable {
		return nil, false
	}
	return in.selection, true
}

// Selection is what a form submission of this input would send.
func (in *FileInput) Selection() []File {
	return in.selection
}

// Select replaces the selection and mirrors the browser's value attribute.
func (in *FileInput) Select(files ...File) {
	in.selection = files
	if len(files) == 0 {
		RemoveAttr(in.Node, "value")
		return
	}
	SetAttr(in.Node, "value", `C:\fakepath\`+files[0].Name())
}
