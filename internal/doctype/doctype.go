// Package doctype classifies uploaded files by extension.
package doctype

import (
	"path/filepath"
	"strings"
)

// Type is the coarse document kind that selects an extraction path.
type Type string

const (
	PDF   Type = "pdf"
	Image Type = "image"
	Audio Type = "audio"
	File  Type = "file"
)

var byExtension = map[string]Type{
	".pdf":  PDF,
	".png":  Image,
	".jpg":  Image,
	".jpeg": Image,
	".gif":  Image,
	".webp": Image,
	".bmp":  Image,
	".tiff": Image,
	".mp3":  Audio,
	".m4a":  Audio,
	".wav":  Audio,
	".aac":  Audio,
	".ogg":  Audio,
	".flac": Audio,
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".txt":  "text/plain; charset=utf-8",
	".html": "text/html; charset=utf-8",
}

// Classify returns the document type for filename. Unknown extensions are File.
func Classify(filename string) Type {
	if t, ok := byExtension[ext(filename)]; ok {
		return t
	}
	return File
}

// Extractable reports whether text can be pulled out of this type.
func (t Type) Extractable() bool {
	return t == PDF || t == Image || t == Audio
}

// ContentType returns the MIME type used when storing filename.
func ContentType(filename string) string {
	if ct, ok := contentTypes[ext(filename)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
}
