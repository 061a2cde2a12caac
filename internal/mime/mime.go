package mime

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Default is returned for unknown or missing extensions.
const Default = "application/octet-stream"

// types maps lowercase extensions (without the dot) to MIME types.
// The table is static so results do not depend on the host's mime.types.
var types = map[string]string{
	"7z":    "application/x-7z-compressed",
	"aac":   "audio/aac",
	"avi":   "video/x-msvideo",
	"avif":  "image/avif",
	"bmp":   "image/bmp",
	"bz2":   "application/x-bzip2",
	"css":   "text/css",
	"csv":   "text/csv",
	"doc":   "application/msword",
	"docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"eot":   "application/vnd.ms-fontobject",
	"epub":  "application/epub+zip",
	"flac":  "audio/flac",
	"gif":   "image/gif",
	"gz":    "application/gzip",
	"heic":  "image/heic",
	"htm":   "text/html",
	"html":  "text/html",
	"ico":   "image/x-icon",
	"ics":   "text/calendar",
	"jpe":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"js":    "application/javascript",
	"json":  "application/json",
	"m4a":   "audio/mp4",
	"m4v":   "video/x-m4v",
	"md":    "text/markdown",
	"mid":   "audio/midi",
	"midi":  "audio/midi",
	"mov":   "video/quicktime",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"mpeg":  "video/mpeg",
	"mpg":   "video/mpeg",
	"odp":   "application/vnd.oasis.opendocument.presentation",
	"ods":   "application/vnd.oasis.opendocument.spreadsheet",
	"odt":   "application/vnd.oasis.opendocument.text",
	"oga":   "audio/ogg",
	"ogg":   "audio/ogg",
	"ogv":   "video/ogg",
	"otf":   "font/otf",
	"pdf":   "application/pdf",
	"png":   "image/png",
	"ppt":   "application/vnd.ms-powerpoint",
	"pptx":  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"psd":   "image/vnd.adobe.photoshop",
	"rar":   "application/vnd.rar",
	"rtf":   "application/rtf",
	"svg":   "image/svg+xml",
	"swf":   "application/x-shockwave-flash",
	"tar":   "application/x-tar",
	"tif":   "image/tiff",
	"tiff":  "image/tiff",
	"ttf":   "font/ttf",
	"txt":   "text/plain",
	"wav":   "audio/wav",
	"weba":  "audio/webm",
	"webm":  "video/webm",
	"webp":  "image/webp",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"xls":   "application/vnd.ms-excel",
	"xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xml":   "application/xml",
	"yaml":  "application/x-yaml",
	"yml":   "application/x-yaml",
	"zip":   "application/zip",
}

// Lookup returns the MIME type for an extension such as "png" or ".PNG".
func Lookup(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if t, ok := types[ext]; ok {
		return t
	}
	return Default
}

// Known reports whether ext is in the table.
func Known(ext string) bool {
	_, ok := types[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// ForFilename looks up the text after the last dot of name.
// A name without a dot has no extension and gets Default.
func ForFilename(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return Default
	}
	return Lookup(name[i+1:])
}

// Detect sniffs the content of r. It falls back to Default on read errors.
func Detect(r io.Reader) string {
	mt, err := mimetype.DetectReader(r)
	if err != nil || mt == nil {
		return Default
	}
	return mt.String()
}
