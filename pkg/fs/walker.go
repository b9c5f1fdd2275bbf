package fs

import (
	"context"
	"sort"

	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
)

// maxDirOffset is the safety cap on pagination; a directory claiming
// more rows than this is treated as complete at the cap.
const maxDirOffset = 10000

// ListDirectory fetches one page of a directory listing.
func (s *Service) ListDirectory(ctx context.Context, path string, offset, lines int, force bool) ([]Entry, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if lines <= 0 {
		lines = s.cfg.DirPageLines
	}
	req := dirRequest{Dir: dirBody{Path: path, Offset: offset, Lines: lines, Force: force}}
	reply, _, err := exchange[dirReply](ctx, s, "dir", req, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := deviceErr("dir", reply.Err); err != nil {
		return nil, err
	}
	return reply.List, nil
}

// ListDirectoryComplete pages through the whole directory and returns
// the deduplicated union, caching the result. force bypasses the cache
// and asks the device to rescan.
func (s *Service) ListDirectoryComplete(ctx context.Context, path string, force bool, onProgress func(fetched int)) ([]Entry, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if !force {
		if cached, ok := s.tree.Get(path); ok {
			return cached, nil
		}
	}

	lines := s.cfg.DirPageLines
	var pages [][]Entry
	total := 0
	for offset := 0; offset <= maxDirOffset; {
		page, err := s.ListDirectory(ctx, path, offset, lines, force && offset == 0)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		pages = append(pages, page)
		total += len(page)
		offset += len(page)
		if onProgress != nil {
			onProgress(total)
		}
	}

	// Last-writer-wins on duplicate names across page boundaries.
	index := make(map[string]int, total)
	out := make([]Entry, 0, total)
	for _, page := range pages {
		for _, e := range page {
			if i, seen := index[e.Name]; seen {
				out[i] = e
				continue
			}
			index[e.Name] = len(out)
			out = append(out, e)
		}
	}

	s.tree.Put(path, out)
	return out, nil
}

// Stat looks an entry up by listing its parent.
func (s *Service) Stat(ctx context.Context, path string) (*Entry, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	list, err := s.ListDirectoryComplete(ctx, ParentPath(path), false, nil)
	if err != nil {
		return nil, err
	}
	name := BaseName(path)
	for _, e := range list {
		if e.Name == name {
			return &e, nil
		}
	}
	return nil, nil
}

type walkItem struct {
	path  string
	isDir bool
	depth int
}

// walk enumerates all descendants of a directory, depth-first. Corrupt
// entries are reported and never descended into. A directory is
// recorded at its children's depth: under the depth-descending,
// files-first deletion sort this keeps every directory behind its own
// contents.
func (s *Service) walk(ctx context.Context, dir string, depth int, out *[]walkItem) error {
	list, err := s.ListDirectoryComplete(ctx, dir, false, nil)
	if err != nil {
		return err
	}
	for _, e := range list {
		child := JoinPath(dir, e.Name)
		if e.Corrupt() {
			logger.Warn().Str("path", child).Int("attr", e.Attr).Msg("skipping corrupt directory entry")
			continue
		}
		if e.IsDir() {
			*out = append(*out, walkItem{path: child, isDir: true, depth: depth + 1})
			if err := s.walk(ctx, child, depth+1, out); err != nil {
				return err
			}
		} else {
			*out = append(*out, walkItem{path: child, isDir: false, depth: depth})
		}
	}
	return nil
}

// Delete removes a file, or a directory tree recursively. Deletion runs
// deepest-first with files before directories at equal depth, so every
// directory is empty by the time its own delete is issued. A
// file-not-found from the device counts as success; any other failure
// aborts the remaining deletions.
func (s *Service) Delete(ctx context.Context, path string) error {
	path, err := NormalizePath(path)
	if err != nil {
		return err
	}

	isDir := false
	if entry, err := s.Stat(ctx, path); err == nil && entry != nil {
		isDir = entry.IsDir()
	}
	// A failed parent listing leaves isDir false: treat as a plain file.

	targets := []walkItem{}
	if isDir {
		if err := s.walk(ctx, path, 1, &targets); err != nil {
			return err
		}
		sort.SliceStable(targets, func(i, j int) bool {
			if targets[i].depth != targets[j].depth {
				return targets[i].depth > targets[j].depth
			}
			return !targets[i].isDir && targets[j].isDir
		})
	}
	targets = append(targets, walkItem{path: path, isDir: isDir, depth: 0})

	for _, item := range targets {
		if err := ctx.Err(); err != nil {
			return contextErr(ctx, "recursive delete")
		}
		if err := s.deleteOne(ctx, item.path); err != nil {
			return err
		}
	}

	// The parent listing just loses one name; everything under the
	// deleted path is gone wholesale.
	s.tree.DropSubtree(path)
	s.tree.RemoveEntry(ParentPath(path), BaseName(path))
	s.forgetPath(path)
	return nil
}
