// Package fs implements the remote-filesystem client on top of the
// sysex request engine: typed command schemas, chunked file transfer,
// recursive delete, paginated directory enumeration and the service
// facade exposed to the CLI.
package fs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
	"github.com/silicakes/deluge-extensions-sub001/pkg/sysex"
)

// Request schemas. Each request is a single-key object; the device
// replies under the same key prefixed with '^'.

type openRequest struct {
	Open openBody `json:"open"`
}

type openBody struct {
	Path  string `json:"path"`
	Write int    `json:"write"`
	Date  int    `json:"date,omitempty"`
	Time  int    `json:"time,omitempty"`
}

type openReply struct {
	FID  uint32 `json:"fid"`
	Size int64  `json:"size"`
	Err  int    `json:"err"`
}

type readRequest struct {
	Read readBody `json:"read"`
}

type readBody struct {
	FID  uint32 `json:"fid"`
	Addr int64  `json:"addr"`
	Size int    `json:"size"`
}

type readReply struct {
	FID  uint32 `json:"fid"`
	Addr int64  `json:"addr"`
	Size int    `json:"size"`
	Err  int    `json:"err"`
}

type writeRequest struct {
	Write writeBody `json:"write"`
}

type writeBody struct {
	FID  uint32 `json:"fid"`
	Addr int64  `json:"addr"`
	Size int    `json:"size"`
}

type writeReply struct {
	FID  uint32 `json:"fid"`
	Addr int64  `json:"addr"`
	Size int    `json:"size"`
	Err  int    `json:"err"`
}

type closeRequest struct {
	Close closeBody `json:"close"`
}

type closeBody struct {
	FID uint32 `json:"fid"`
}

type closeReply struct {
	FID uint32 `json:"fid"`
	Err int    `json:"err"`
}

type dirRequest struct {
	Dir dirBody `json:"dir"`
}

type dirBody struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Lines  int    `json:"lines"`
	Force  bool   `json:"force,omitempty"`
}

type dirReply struct {
	List []Entry `json:"list"`
	Err  int     `json:"err"`
}

type deleteRequest struct {
	Delete pathBody `json:"delete"`
}

type pathBody struct {
	Path string `json:"path"`
}

type renameRequest struct {
	Rename fromToBody `json:"rename"`
}

type fromToBody struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type moveRequest struct {
	Move moveBody `json:"move"`
}

type moveBody struct {
	From        string `json:"from"`
	To          string `json:"to"`
	UpdatePaths bool   `json:"update_paths,omitempty"`
}

type copyRequest struct {
	Copy fromToBody `json:"copy"`
}

type mkdirRequest struct {
	Mkdir mkdirBody `json:"mkdir"`
}

type mkdirBody struct {
	Path string `json:"path"`
	Date int    `json:"date"`
	Time int    `json:"time"`
}

type errReply struct {
	Err int `json:"err"`
}

// exchange is the single funnel every filesystem command passes through:
// ensure-session, send, unwrap the '^'-keyed reply, decode. Retry is a
// caller decision and never happens here. A reply that fails to decode
// counts as stream corruption and resets the session.
func exchange[T any](ctx context.Context, s *Service, key string, req any, binary []byte, timeout time.Duration) (*T, []byte, error) {
	reply, err := s.sm.Exchange(ctx, req, binary, timeout)
	if err != nil {
		return nil, nil, err
	}
	body, err := sysex.UnwrapReply(reply.JSON, key)
	if err != nil {
		s.sm.Transport().ResetSession()
		return nil, nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		s.sm.Transport().ResetSession()
		return nil, nil, errors.UnexpectedReply("undecodable " + key + " reply")
	}
	return &out, reply.Binary, nil
}

// deviceErr classifies a device result code for a command, honoring the
// per-command success allowlist.
func deviceErr(command string, code int) error {
	if errors.IsSuccessCode(command, code) {
		return nil
	}
	return errors.Device(code)
}
