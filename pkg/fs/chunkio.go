package fs

import (
	"context"
	"fmt"
	"sync"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
)

// ProgressFunc reports transfer progress, once per chunk. done is
// monotone non-decreasing. A read ends at total; a write reports the
// device-accepted count, which ends below total if the device accepted
// a chunk short. An empty file produces no calls.
type ProgressFunc func(done, total int64)

// TransferOptions tune a single read or write.
type TransferOptions struct {
	Progress ProgressFunc
	// Overwrite permits WriteFile to replace an existing file.
	Overwrite bool
	// Sanitize rewrites an invalid destination name instead of failing.
	Sanitize bool
}

func contextErr(ctx context.Context, operation string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Timeout(operation)
	}
	return errors.Cancelled(operation)
}

// ReadFile fetches a whole remote file in device-sized chunks. The
// handle is closed on every exit path; cancellation between chunks still
// closes before returning.
func (s *Service) ReadFile(ctx context.Context, path string, opts TransferOptions) ([]byte, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	opened, err := s.open(ctx, path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open failed for "+path)
	}
	fid := opened.FID
	size := opened.Size

	buf := make([]byte, 0, size)
	var offset int64
	for offset < size {
		if ctx.Err() != nil {
			s.bestEffortClose(ctx, fid)
			return nil, contextErr(ctx, "read "+path)
		}
		chunk := s.cfg.ReadChunk
		if remaining := size - offset; int64(chunk) > remaining {
			chunk = int(remaining)
		}
		data, err := s.read(ctx, fid, offset, chunk)
		if err != nil {
			s.bestEffortClose(ctx, fid)
			return nil, err
		}
		if len(data) == 0 {
			s.bestEffortClose(ctx, fid)
			return nil, errors.UnexpectedReply(fmt.Sprintf("empty read chunk at offset %d", offset))
		}
		buf = append(buf, data...)
		offset += int64(len(data))
		if opts.Progress != nil {
			opts.Progress(offset, size)
		}
	}

	if err := s.closeHandle(ctx, fid); err != nil {
		return nil, err
	}
	if int64(len(buf)) != size {
		return nil, errors.UnexpectedReply(fmt.Sprintf("read %d bytes, device advertised %d", len(buf), size))
	}
	return buf, nil
}

// WriteFile creates or replaces a remote file from data. addr always
// equals the running count of device-accepted bytes; the device may
// accept a chunk short and the accepted count is what advances it.
func (s *Service) WriteFile(ctx context.Context, path string, data []byte, opts TransferOptions) error {
	path, err := NormalizePath(path)
	if err != nil {
		return err
	}
	name := BaseName(path)
	if res := ValidateName(name); !res.Valid() {
		if !opts.Sanitize {
			return errors.InvalidFilename(name, res.Errors)
		}
		name = SanitizeName(name)
		path = JoinPath(ParentPath(path), name)
		logger.Info().Str("name", name).Msg("sanitized destination filename")
	}

	if !opts.Overwrite {
		if existing, err := s.Stat(ctx, path); err == nil && existing != nil {
			return errors.Device(errors.FatFileExists)
		}
	}

	opened, err := s.open(ctx, path, true)
	if err != nil {
		return errors.Wrap(err, "open failed for "+path)
	}
	fid := opened.FID
	total := int64(len(data))

	var written int64
	for cursor := 0; cursor < len(data); {
		if ctx.Err() != nil {
			s.bestEffortClose(ctx, fid)
			return contextErr(ctx, "write "+path)
		}
		end := min(cursor+s.cfg.WriteChunk, len(data))
		chunk := data[cursor:end]
		accepted, err := s.write(ctx, fid, written, chunk)
		if err != nil {
			s.bestEffortClose(ctx, fid)
			return err
		}
		written += int64(accepted)
		cursor = end
		if opts.Progress != nil {
			opts.Progress(written, total)
		}
	}

	if err := s.closeHandle(ctx, fid); err != nil {
		return err
	}
	s.tree.Invalidate(ParentPath(path))
	return nil
}

// bestEffortClose releases a handle on an error path. Failures are
// logged, never surfaced over the original error.
func (s *Service) bestEffortClose(ctx context.Context, fid uint32) {
	if err := s.closeHandle(ctx, fid); err != nil {
		logger.Warn().Err(err).Uint32("fid", fid).Msg("close after failed transfer")
	}
}

// UploadFile is one source for a batch upload.
type UploadFile struct {
	Name string
	Data []byte
}

// UploadOptions control a batch upload.
type UploadOptions struct {
	DestDir       string
	MaxConcurrent int
	Overwrite     bool
	ForceSanitize bool
	// Progress is called per file with its running byte counts.
	Progress func(name string, done, total int64)
}

// UploadFiles writes a batch of files under DestDir. Files are prepared
// concurrently up to MaxConcurrent but frames still serialize on the
// transport; the first failure cancels the rest.
func (s *Service) UploadFiles(ctx context.Context, files []UploadFile, opts UploadOptions) error {
	dest, err := NormalizePath(opts.DestDir)
	if err != nil {
		return err
	}
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = s.cfg.UploadParallel
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, file := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(f UploadFile) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			name := f.Name
			if opts.ForceSanitize {
				name = SanitizeName(name)
			}
			topts := TransferOptions{
				Overwrite: opts.Overwrite,
				Sanitize:  opts.ForceSanitize,
			}
			if opts.Progress != nil {
				topts.Progress = func(done, total int64) {
					opts.Progress(name, done, total)
				}
			}
			if err := s.WriteFile(ctx, JoinPath(dest, name), f.Data, topts); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = errors.Wrap(err, "upload failed for "+name)
					cancel()
				}
				mu.Unlock()
			}
		}(file)
	}

	wg.Wait()
	return firstErr
}
