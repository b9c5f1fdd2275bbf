package fs

import (
	"strings"
	"sync"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
)

// NormalizePath canonicalizes a remote path: absolute, '/'-separated,
// no empty segments, no trailing slash except the root itself.
func NormalizePath(p string) (string, error) {
	if p == "" || p[0] != '/' {
		return "", errors.ValidationError("remote paths must be absolute")
	}
	segments := make([]string, 0, 8)
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "/", nil
	}
	out := "/" + strings.Join(segments, "/")
	if len(out) > MaxNameBytes {
		return "", errors.PathTooLong(p)
	}
	return out, nil
}

// ParentPath returns the directory containing p ("/" for top-level
// entries and the root itself).
func ParentPath(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// BaseName returns the final path segment.
func BaseName(p string) string {
	if p == "/" {
		return "/"
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// JoinPath appends a name to a directory path.
func JoinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// Tree caches the most recent complete listing per directory. Partial
// pages are never stored; mutations happen only on command success.
type Tree struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewTree() *Tree {
	return &Tree{entries: make(map[string][]Entry)}
}

// Get returns the cached complete listing for path, if any.
func (t *Tree) Get(path string) ([]Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list, ok := t.entries[path]
	return list, ok
}

// Put stores a complete listing.
func (t *Tree) Put(path string, list []Entry) {
	t.mu.Lock()
	t.entries[path] = list
	t.mu.Unlock()
}

// Invalidate drops the listing for one directory.
func (t *Tree) Invalidate(path string) {
	t.mu.Lock()
	delete(t.entries, path)
	t.mu.Unlock()
}

// DropSubtree drops the listing for path and everything below it. The
// parent listing is left alone.
func (t *Tree) DropSubtree(path string) {
	prefix := path
	if prefix != "/" {
		prefix += "/"
	}
	t.mu.Lock()
	for key := range t.entries {
		if key == path || strings.HasPrefix(key, prefix) {
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()
}

// InvalidateSubtree is DropSubtree plus the parent listing that named
// the path. Used when an entry appears or changes shape; a plain delete
// uses RemoveEntry on the parent instead.
func (t *Tree) InvalidateSubtree(path string) {
	t.DropSubtree(path)
	t.Invalidate(ParentPath(path))
}

// RemoveEntry drops one name from a cached parent listing after a
// successful delete, keeping the rest of the cache warm.
func (t *Tree) RemoveEntry(parent, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list, ok := t.entries[parent]
	if !ok {
		return
	}
	out := list[:0]
	for _, e := range list {
		if e.Name != name {
			out = append(out, e)
		}
	}
	t.entries[parent] = out
}
