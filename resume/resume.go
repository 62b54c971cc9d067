// Package resume persists the path on screen so a restarted loop can pick up
// where the previous run left off.
package resume

import (
	"time"

	"github.com/metafates/gache"
	"github.com/mi-skam/bramble/filesystem"
	"github.com/mi-skam/bramble/where"
	"github.com/samber/mo"
)

// Point is the persisted bookmark of one run of the loop.
type Point struct {
	Path    string    `json:"path"`
	SavedAt time.Time `json:"saved_at"`
}

// cacher provides the disk-backed store for the bookmark.
var cacher = gache.New[*Point](
	&gache.Options{
		Path:       where.Resume(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Save records path as the entry currently on screen.
func Save(path string) error {
	return cacher.Set(&Point{Path: path, SavedAt: time.Now()})
}

// Load returns the bookmark of the previous run, when one exists.
func Load() (mo.Option[Point], error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return mo.None[Point](), err
	}
	if expired || cached == nil || cached.Path == "" {
		return mo.None[Point](), nil
	}
	return mo.Some(*cached), nil
}

// Clear forgets the bookmark.
func Clear() error {
	return cacher.Set(nil)
}
