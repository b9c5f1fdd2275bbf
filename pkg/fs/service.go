package fs

import (
	"context"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/config"
	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
	"github.com/silicakes/deluge-extensions-sub001/pkg/sysex"
)

// PathCache mirrors remote paths for shell completions. The service
// only tells it when paths disappear; listings feed it elsewhere.
type PathCache interface {
	Forget(path string) error
}

// Service is the remote-filesystem facade the CLI talks to. It owns the
// directory tree cache; the session manager and transport below it own
// everything protocol-side.
type Service struct {
	sm        *sysex.SessionManager
	cfg       config.ProtocolConfig
	tree      *Tree
	pathCache PathCache

	// now is stubbed in tests for deterministic FAT timestamps.
	now func() time.Time
}

func NewService(sm *sysex.SessionManager, cfg config.ProtocolConfig) *Service {
	cfg.ApplyDefaults()
	sm.RenewThreshold = cfg.RenewThreshold
	return &Service{
		sm:   sm,
		cfg:  cfg,
		tree: NewTree(),
		now:  time.Now,
	}
}

// Tree exposes the directory cache (read-mostly; the CLI renders from it).
func (s *Service) Tree() *Tree {
	return s.tree
}

// SetPathCache attaches the completion path cache so deletes and moves
// evict stale suggestions.
func (s *Service) SetPathCache(c PathCache) {
	s.pathCache = c
}

// forgetPath evicts a vanished path from the completion cache. Best
// effort only.
func (s *Service) forgetPath(path string) {
	if s.pathCache == nil {
		return
	}
	if err := s.pathCache.Forget(path); err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("completion cache eviction failed")
	}
}

// Session returns the session manager for session-level operations.
func (s *Service) Session() *sysex.SessionManager {
	return s.sm
}

// Ping checks device liveness through the full command path.
func (s *Service) Ping(ctx context.Context) error {
	return s.sm.Ping(ctx)
}

// OpenSession opens a session explicitly and reports its parameters.
func (s *Service) OpenSession(ctx context.Context, tag string) (*sysex.Session, error) {
	return s.sm.OpenSession(ctx, tag)
}

// CloseSession closes the current session, if any.
func (s *Service) CloseSession(ctx context.Context) error {
	return s.sm.CloseSession(ctx)
}

// SendCustomSysex transmits a user-supplied hex frame. It reports
// success as a bool: the escape hatch has no reply contract to await.
func (s *Service) SendCustomSysex(hex string) bool {
	if err := s.sm.Transport().SendCustomSysex(hex); err != nil {
		logger.Warn().Err(err).Msg("custom sysex rejected")
		return false
	}
	return true
}

// open is the handle-producing primitive under the chunked transfers.
func (s *Service) open(ctx context.Context, path string, write bool) (*openReply, error) {
	body := openBody{Path: path}
	if write {
		body.Write = 1
		date, tm := sysex.FatDateTime(s.now())
		body.Date = int(date)
		body.Time = int(tm)
	}
	reply, _, err := exchange[openReply](ctx, s, "open", openRequest{Open: body}, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := deviceErr("open", reply.Err); err != nil {
		return nil, err
	}
	return reply, nil
}

// read fetches one chunk. The reply carries the chunk 7-bit packed after
// the JSON, so it gets the binary deadline.
func (s *Service) read(ctx context.Context, fid uint32, addr int64, size int) ([]byte, error) {
	req := readRequest{Read: readBody{FID: fid, Addr: addr, Size: size}}
	reply, bin, err := exchange[readReply](ctx, s, "read", req, nil, s.cfg.BinaryTimeout)
	if err != nil {
		return nil, err
	}
	if err := deviceErr("read", reply.Err); err != nil {
		return nil, err
	}
	return bin, nil
}

// write pushes one chunk and returns the device's accepted byte count,
// which may be short.
func (s *Service) write(ctx context.Context, fid uint32, addr int64, chunk []byte) (int, error) {
	req := writeRequest{Write: writeBody{FID: fid, Addr: addr, Size: len(chunk)}}
	reply, _, err := exchange[writeReply](ctx, s, "write", req, chunk, s.cfg.BinaryTimeout)
	if err != nil {
		return 0, err
	}
	if err := deviceErr("write", reply.Err); err != nil {
		// A write failure suggests device-side stream trouble.
		if reply.Err == 1 {
			s.sm.Transport().ResetSession()
		}
		return 0, err
	}
	return reply.Size, nil
}

// closeHandle releases a device file handle. Runs detached from caller
// cancellation so close-on-error and close-on-cancel still reach the
// wire.
func (s *Service) closeHandle(ctx context.Context, fid uint32) error {
	ctx = context.WithoutCancel(ctx)
	reply, _, err := exchange[closeReply](ctx, s, "close", closeRequest{Close: closeBody{FID: fid}}, nil, 0)
	if err != nil {
		return err
	}
	return deviceErr("close", reply.Err)
}

// Rename renames or moves an entry within the filesystem.
func (s *Service) Rename(ctx context.Context, from, to string) error {
	from, to, err := s.normalizePair(from, to)
	if err != nil {
		return err
	}
	reply, _, err := exchange[errReply](ctx, s, "rename", renameRequest{Rename: fromToBody{From: from, To: to}}, nil, 0)
	if err != nil {
		return err
	}
	if err := deviceErr("rename", reply.Err); err != nil {
		return err
	}
	s.tree.InvalidateSubtree(from)
	s.tree.InvalidateSubtree(to)
	s.forgetPath(from)
	return nil
}

// Move relocates an entry. updatePaths is passed through opaquely; the
// device uses it to rewrite XML references to the moved file.
func (s *Service) Move(ctx context.Context, from, to string, updatePaths bool) error {
	from, to, err := s.normalizePair(from, to)
	if err != nil {
		return err
	}
	req := moveRequest{Move: moveBody{From: from, To: to, UpdatePaths: updatePaths}}
	reply, _, err := exchange[errReply](ctx, s, "move", req, nil, 0)
	if err != nil {
		return err
	}
	if err := deviceErr("move", reply.Err); err != nil {
		return err
	}
	s.tree.InvalidateSubtree(from)
	s.tree.InvalidateSubtree(to)
	s.forgetPath(from)
	return nil
}

// Copy duplicates a file.
func (s *Service) Copy(ctx context.Context, from, to string) error {
	from, to, err := s.normalizePair(from, to)
	if err != nil {
		return err
	}
	reply, _, err := exchange[errReply](ctx, s, "copy", copyRequest{Copy: fromToBody{From: from, To: to}}, nil, 0)
	if err != nil {
		return err
	}
	if err := deviceErr("copy", reply.Err); err != nil {
		return err
	}
	s.tree.Invalidate(ParentPath(to))
	return nil
}

// Mkdir creates a directory with the current FAT timestamp.
func (s *Service) Mkdir(ctx context.Context, path string) error {
	path, err := s.normalizeNew(path)
	if err != nil {
		return err
	}
	date, tm := sysex.FatDateTime(s.now())
	req := mkdirRequest{Mkdir: mkdirBody{Path: path, Date: int(date), Time: int(tm)}}
	reply, _, err := exchange[errReply](ctx, s, "mkdir", req, nil, 0)
	if err != nil {
		return err
	}
	if err := deviceErr("mkdir", reply.Err); err != nil {
		return err
	}
	s.tree.Invalidate(ParentPath(path))
	return nil
}

// deleteOne issues a single delete command, tolerating the per-command
// success codes (file-not-found counts as done).
func (s *Service) deleteOne(ctx context.Context, path string) error {
	reply, _, err := exchange[errReply](ctx, s, "delete", deleteRequest{Delete: pathBody{Path: path}}, nil, 0)
	if err != nil {
		return err
	}
	return deviceErr("delete", reply.Err)
}

// normalizePair normalizes both paths of a two-path command and
// validates the destination's new name.
func (s *Service) normalizePair(from, to string) (string, string, error) {
	nfrom, err := NormalizePath(from)
	if err != nil {
		return "", "", err
	}
	nto, err := s.normalizeNew(to)
	if err != nil {
		return "", "", err
	}
	return nfrom, nto, nil
}

// normalizeNew normalizes a path that introduces a new name and runs the
// name through validation.
func (s *Service) normalizeNew(path string) (string, error) {
	npath, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	name := BaseName(npath)
	if res := ValidateName(name); !res.Valid() {
		return "", errors.InvalidFilename(name, res.Errors)
	} else if len(res.Warnings) > 0 {
		logger.Warn().Str("name", name).Strs("warnings", res.Warnings).Msg("questionable filename")
	}
	return npath, nil
}
