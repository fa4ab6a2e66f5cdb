// Package soundboard maintains the library of playable sound files and
// resolves free-text requests against it.
//
// The library is scanned from a directory tree: immediate subdirectories are
// categories, the files inside them are sounds. The resulting index is
// immutable; reloads build a fresh index and swap it in atomically so readers
// never observe a partially built catalog.
package soundboard

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// ErrIndexBuild wraps any failure to scan the sound directory. Callers keep
// serving the previous index when a rebuild fails.
var ErrIndexBuild = errors.New("soundboard: index build failed")

// SoundEntry is one playable sound. Immutable once indexed.
type SoundEntry struct {
	// Name is the file name without extension, unique case-insensitively
	// across the whole library.
	Name     string
	Category string
	Path     string
	AddedAt  time.Time
}

// Index is an immutable catalog of sounds. Entries are ordered by AddedAt
// descending so "newest N" queries are a prefix slice.
type Index struct {
	entries []SoundEntry
	byName  map[string]SoundEntry // key: lowercased name
}

// Build scans root and returns a new index. Immediate subdirectories of root
// become categories; files directly inside a category become entries. Files
// placed directly in root are ignored. On a duplicate name across categories
// the entry encountered first wins and the duplicate is dropped with a
// warning.
//
// A missing or unreadable root returns an error wrapping [ErrIndexBuild].
func Build(root string) (*Index, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: read root %q: %w", ErrIndexBuild, root, err)
	}

	idx := &Index{byName: make(map[string]SoundEntry)}
	for _, d := range dirs {
		if !d.IsDir() {
			continue // stray files in the root are not sounds
		}
		category := d.Name()
		files, err := os.ReadDir(filepath.Join(root, category))
		if err != nil {
			slog.Warn("skipping unreadable category", "category", category, "err", err)
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			name := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if prev, ok := idx.byName[key]; ok {
				slog.Warn("duplicate sound name, keeping first",
					"name", name, "kept_category", prev.Category, "dropped_category", category)
				continue
			}
			info, err := f.Info()
			if err != nil {
				slog.Warn("skipping unreadable sound file", "file", f.Name(), "err", err)
				continue
			}
			entry := SoundEntry{
				Name:     name,
				Category: category,
				Path:     filepath.Join(root, category, f.Name()),
				AddedAt:  info.ModTime(),
			}
			idx.byName[key] = entry
			idx.entries = append(idx.entries, entry)
		}
	}

	sort.SliceStable(idx.entries, func(i, j int) bool {
		if !idx.entries[i].AddedAt.Equal(idx.entries[j].AddedAt) {
			return idx.entries[i].AddedAt.After(idx.entries[j].AddedAt)
		}
		return idx.entries[i].Name < idx.entries[j].Name
	})
	return idx, nil
}

// Count returns the number of indexed sounds.
func (idx *Index) Count() int {
	return len(idx.entries)
}

// Newest returns the n most recently added sounds, or all of them when fewer
// than n exist.
func (idx *Index) Newest(n int) []SoundEntry {
	if n > len(idx.entries) {
		n = len(idx.entries)
	}
	if n <= 0 {
		return nil
	}
	out := make([]SoundEntry, n)
	copy(out, idx.entries[:n])
	return out
}

// Lookup finds a sound by name, case-insensitively.
func (idx *Index) Lookup(name string) (SoundEntry, bool) {
	e, ok := idx.byName[strings.ToLower(name)]
	return e, ok
}

// Entries returns all sounds ordered by AddedAt descending.
func (idx *Index) Entries() []SoundEntry {
	out := make([]SoundEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Categories returns the distinct category names, sorted.
func (idx *Index) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range idx.entries {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	sort.Strings(out)
	return out
}

// Category returns the sounds in the named category, ordered by AddedAt
// descending.
func (idx *Index) Category(name string) []SoundEntry {
	var out []SoundEntry
	for _, e := range idx.entries {
		if e.Category == name {
			out = append(out, e)
		}
	}
	return out
}

// Random returns a uniformly random sound, or false for an empty index.
func (idx *Index) Random() (SoundEntry, bool) {
	if len(idx.entries) == 0 {
		return SoundEntry{}, false
	}
	return idx.entries[rand.IntN(len(idx.entries))], true
}

// Library holds the current index and swaps it atomically on reload. Safe for
// concurrent use.
type Library struct {
	root string
	idx  atomic.Pointer[Index]
}

// NewLibrary builds the initial index from root. The build error is wrapped
// with [ErrIndexBuild]; no library is returned in that case.
func NewLibrary(root string) (*Library, error) {
	idx, err := Build(root)
	if err != nil {
		return nil, err
	}
	l := &Library{root: root}
	l.idx.Store(idx)
	return l, nil
}

// Current returns the active index.
func (l *Library) Current() *Index {
	return l.idx.Load()
}

// Reload rebuilds the index from disk. On failure the previous index stays
// active and the error is returned for logging.
func (l *Library) Reload() error {
	idx, err := Build(l.root)
	if err != nil {
		return err
	}
	l.idx.Store(idx)
	return nil
}
