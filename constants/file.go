package constants

import (
	"mime"
	"strings"
)

const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

// AllowedExtensions holds the file extensions the inbox watcher picks up.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"txt":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

var extMime = map[string]string{
	"pdf":  MimePDF,
	"txt":  MimeText,
	"jpg":  MimeJPEG,
	"jpeg": MimeJPEG,
	"png":  MimePNG,
	"webp": MimeWebP,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeForExt maps a file extension to the mime type the pipeline expects.
// Unknown extensions return "".
func MimeForExt(ext string) string {
	return extMime[NormalizeExt(ext)]
}

// NormalizeMime strips parameters ("; charset=utf-8") and lowercases.
func NormalizeMime(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsImage reports whether the mime type is a raster image.
func IsImage(mt string) bool {
	return strings.HasPrefix(NormalizeMime(mt), "image/")
}
