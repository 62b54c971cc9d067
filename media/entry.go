// Package media models the playable contents of the display loop's media directory.
package media

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind partitions playable files by how their display time is governed.
type Kind int

const (
	// Unsupported marks files the loop ignores entirely.
	Unsupported Kind = iota
	// Image entries stay on screen for a fixed display duration.
	Image
	// Video entries stay on screen until the player reports end of file.
	Video
)

// String returns the lowercase identifier of the kind.
func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "unsupported"
	}
}

// Supported file extensions per kind. Classification is by extension only, case-insensitive.
var (
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
		".bmp": {}, ".tiff": {}, ".webp": {}, ".svg": {},
	}
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".avi": {}, ".mkv": {}, ".mov": {}, ".wmv": {},
		".flv": {}, ".webm": {}, ".m4v": {}, ".mpg": {}, ".mpeg": {},
	}
)

// Entry is one playable unit of the loop. Immutable once constructed.
type Entry struct {
	Path string
	Kind Kind

	// Duration is the on-screen time for image entries. A zero or negative
	// value defers to the configured default. Videos ignore it entirely.
	Duration time.Duration
}

// Classify determines the Kind of a path from its extension.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return Image
	}
	if _, ok := videoExtensions[ext]; ok {
		return Video
	}
	return Unsupported
}

// IsSupported reports whether the path names a playable media file.
func IsSupported(path string) bool {
	return Classify(path) != Unsupported
}
