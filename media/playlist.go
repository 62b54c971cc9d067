// Package media models the playable contents of the display loop's media directory.
package media

import "github.com/samber/mo"

// Playlist is the ordered media sequence plus the cursor driving the loop.
//
// The scheduler is the sole owner: all mutation happens inside its control
// loop, so the type itself carries no locking.
type Playlist struct {
	entries []Entry
	cursor  int
}

// NewPlaylist wraps an already-sorted entry sequence with the cursor at zero.
func NewPlaylist(entries []Entry) *Playlist {
	return &Playlist{entries: entries}
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.entries)
}

// Empty reports whether the playlist holds no entries.
func (p *Playlist) Empty() bool {
	return len(p.entries) == 0
}

// Entries returns the backing entry sequence in order.
func (p *Playlist) Entries() []Entry {
	return p.entries
}

// Cursor returns the current index. Meaningful only while the playlist is non-empty.
func (p *Playlist) Cursor() int {
	return p.cursor
}

// Current returns the entry under the cursor.
func (p *Playlist) Current() mo.Option[Entry] {
	if p.Empty() {
		return mo.None[Entry]()
	}
	return mo.Some(p.entries[p.cursor])
}

// Advance moves the cursor one step forward, wrapping at the end, and returns
// the entry it lands on. A single-entry playlist advances onto itself.
func (p *Playlist) Advance() mo.Option[Entry] {
	if p.Empty() {
		return mo.None[Entry]()
	}
	p.cursor = (p.cursor + 1) % len(p.entries)
	return mo.Some(p.entries[p.cursor])
}

// Retreat moves the cursor one step backward, wrapping at the start, and
// returns the entry it lands on.
func (p *Playlist) Retreat() mo.Option[Entry] {
	if p.Empty() {
		return mo.None[Entry]()
	}
	p.cursor = (p.cursor - 1 + len(p.entries)) % len(p.entries)
	return mo.Some(p.entries[p.cursor])
}

// IndexOf locates an entry by path.
func (p *Playlist) IndexOf(path string) mo.Option[int] {
	for i, entry := range p.entries {
		if entry.Path == path {
			return mo.Some(i)
		}
	}
	return mo.None[int]()
}

// Seek positions the cursor on the entry with the given path and reports
// whether it was found. The cursor is untouched on a miss.
func (p *Playlist) Seek(path string) bool {
	if idx, ok := p.IndexOf(path).Get(); ok {
		p.cursor = idx
		return true
	}
	return false
}

// Rebuild replaces the entry sequence wholesale and remaps the cursor onto
// it: when playingPath survives the rebuild the cursor follows it and the
// current item keeps playing; otherwise the cursor resets to zero and the
// caller must reload. Returns true when a reload is required.
func (p *Playlist) Rebuild(entries []Entry, playingPath string) (reload bool) {
	p.entries = entries

	if p.Empty() {
		p.cursor = 0
		return true
	}

	if playingPath != "" {
		if idx, ok := p.IndexOf(playingPath).Get(); ok {
			p.cursor = idx
			return false
		}
	}

	p.cursor = 0
	return true
}
