// Package media models the playable contents of the display loop's media directory.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mi-skam/bramble/filesystem"
	"github.com/mi-skam/bramble/key"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
)

// Scan enumerates the supported media files directly inside dir, sorted by
// path in byte order. Image entries are stamped with the configured default
// display duration at construction time.
func Scan(dir string) ([]Entry, error) {
	infos, err := filesystem.API().ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan media directory: %w", err)
	}

	imageDuration := time.Duration(viper.GetFloat64(key.PlaybackImageDuration) * float64(time.Second))

	var entries []Entry
	for _, info := range infos {
		if info.IsDir() {
			continue
		}

		path := filepath.Join(dir, info.Name())
		kind := Classify(path)
		if kind == Unsupported {
			continue
		}

		entry := Entry{Path: path, Kind: kind}
		if kind == Image {
			entry.Duration = imageDuration
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	return entries, nil
}

// Add copies an external file into the media directory under its base name
// and returns the destination path. The change reaches the playlist through
// the watch pipeline, never directly.
func Add(dir, src string) (string, error) {
	if !IsSupported(src) {
		return "", fmt.Errorf("add %s: unsupported media type", filepath.Base(src))
	}

	dst := filepath.Join(dir, filepath.Base(src))
	if exists, _ := filesystem.API().Exists(dst); exists {
		return "", fmt.Errorf("add %s: already present in %s", filepath.Base(src), dir)
	}

	if err := filesystem.Copy(src, dst); err != nil {
		return "", fmt.Errorf("add %s: %w", filepath.Base(src), err)
	}
	return dst, nil
}

// Remove deletes a file from the media directory. The name may be given bare
// or as a full path inside dir.
func Remove(dir, name string) error {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(dir, filepath.Base(name))
	}

	if exists, _ := filesystem.API().Exists(path); !exists {
		return fmt.Errorf("remove %s: no such file", filepath.Base(name))
	}
	return filesystem.API().Remove(path)
}
