package fs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/config"
	"github.com/silicakes/deluge-extensions-sub001/pkg/sysex"
)

// fakeDeluge is an in-memory device speaking the filesystem subset of
// the protocol. It records every command for wire-order assertions.
type fakeDeluge struct {
	tp *sysex.Transport

	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	handles map[uint32]*fakeHandle
	nextFID uint32

	ops []string

	// deleteErr scripts per-path delete result codes.
	deleteErr map[string]int
	// readErr makes every read fail with this code when nonzero.
	readErr int
	// writeAccepts scripts the accepted byte count per write, popped in
	// order; a missing entry accepts the full chunk.
	writeAccepts []int
	// mute drops all requests, simulating a wedged device.
	mute bool
}

type fakeHandle struct {
	path  string
	write bool
	buf   []byte
}

func newFakeDeluge() *fakeDeluge {
	d := &fakeDeluge{
		files:     make(map[string][]byte),
		dirs:      map[string]bool{"/": true},
		handles:   make(map[uint32]*fakeHandle),
		nextFID:   1,
		deleteErr: make(map[string]int),
	}
	d.tp = sysex.NewTransport(d)
	d.tp.JSONTimeout = 50 * time.Millisecond
	d.tp.BinaryTimeout = 100 * time.Millisecond
	return d
}

// newTestService wires a service against a fake device.
func newTestService() (*Service, *fakeDeluge) {
	d := newFakeDeluge()
	sm := sysex.NewSessionManager(d.tp, "test")
	cfg := config.ProtocolConfig{}
	cfg.ApplyDefaults()
	svc := NewService(sm, cfg)
	return svc, d
}

func (d *fakeDeluge) addDir(path string) {
	d.dirs[path] = true
	for p := ParentPath(path); ; p = ParentPath(p) {
		d.dirs[p] = true
		if p == "/" {
			break
		}
	}
}

func (d *fakeDeluge) addFile(path string, data []byte) {
	d.addDir(ParentPath(path))
	d.files[path] = data
}

func (d *fakeDeluge) opLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ops...)
}

func (d *fakeDeluge) deletes() []string {
	var out []string
	for _, op := range d.opLog() {
		if strings.HasPrefix(op, "delete ") {
			out = append(out, strings.TrimPrefix(op, "delete "))
		}
	}
	return out
}

// Send implements sysex.Port: decode the request, answer like the
// firmware would.
func (d *fakeDeluge) Send(raw []byte) error {
	f, err := sysex.ParseFrame(raw)
	if err != nil {
		return err
	}
	if f.Command != sysex.CmdJSON {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mute {
		return nil
	}

	var req map[string]json.RawMessage
	if err := json.Unmarshal(f.JSON, &req); err != nil {
		return err
	}

	for key, body := range req {
		reply, binary := d.handle(key, body, f.Binary)
		if reply == nil {
			return nil
		}
		inner, _ := json.Marshal(reply)
		payload := []byte(fmt.Sprintf(`{"^%s":%s}`, key, inner))
		out, err := sysex.BuildFrame(sysex.Frame{
			Command: sysex.CmdJSON,
			MsgID:   f.MsgID,
			JSON:    payload,
			Binary:  binary,
		}, d.tp.UsesDeveloperID())
		if err != nil {
			return err
		}
		go d.tp.Feed(out)
	}
	return nil
}

// handle must hold d.mu.
func (d *fakeDeluge) handle(key string, body json.RawMessage, reqBinary []byte) (any, []byte) {
	switch key {
	case "ping":
		d.ops = append(d.ops, "ping")
		return map[string]any{}, nil

	case "session":
		d.ops = append(d.ops, "session")
		return map[string]any{"sid": 1, "midMin": 65, "midMax": 79}, nil

	case "closeSession":
		d.ops = append(d.ops, "closeSession")
		return map[string]any{"err": 0}, nil

	case "open":
		var b struct {
			Path  string `json:"path"`
			Write int    `json:"write"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, fmt.Sprintf("open %s w=%d", b.Path, b.Write))
		if b.Write == 0 {
			data, ok := d.files[b.Path]
			if !ok {
				return map[string]any{"fid": 0, "size": 0, "err": 4}, nil
			}
			fid := d.nextFID
			d.nextFID++
			d.handles[fid] = &fakeHandle{path: b.Path}
			return map[string]any{"fid": fid, "size": len(data), "err": 0}, nil
		}
		fid := d.nextFID
		d.nextFID++
		d.handles[fid] = &fakeHandle{path: b.Path, write: true}
		return map[string]any{"fid": fid, "size": 0, "err": 0}, nil

	case "read":
		var b struct {
			FID  uint32 `json:"fid"`
			Addr int64  `json:"addr"`
			Size int    `json:"size"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, fmt.Sprintf("read %d %d", b.Addr, b.Size))
		if d.readErr != 0 {
			return map[string]any{"err": d.readErr}, nil
		}
		h, ok := d.handles[b.FID]
		if !ok {
			return map[string]any{"err": 10}, nil
		}
		data := d.files[h.path]
		end := min(int(b.Addr)+b.Size, len(data))
		chunk := data[b.Addr:end]
		return map[string]any{"fid": b.FID, "addr": b.Addr, "size": len(chunk), "err": 0}, chunk

	case "write":
		var b struct {
			FID  uint32 `json:"fid"`
			Addr int64  `json:"addr"`
			Size int    `json:"size"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, fmt.Sprintf("write %d %d", b.Addr, b.Size))
		h, ok := d.handles[b.FID]
		if !ok || !h.write {
			return map[string]any{"err": 10}, nil
		}
		accept := len(reqBinary)
		if len(d.writeAccepts) > 0 {
			accept = min(d.writeAccepts[0], accept)
			d.writeAccepts = d.writeAccepts[1:]
		}
		h.buf = append(h.buf, reqBinary[:accept]...)
		return map[string]any{"fid": b.FID, "addr": b.Addr, "size": accept, "err": 0}, nil

	case "close":
		var b struct {
			FID uint32 `json:"fid"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, fmt.Sprintf("close %d", b.FID))
		h, ok := d.handles[b.FID]
		if !ok {
			return map[string]any{"fid": b.FID, "err": 10}, nil
		}
		if h.write {
			d.addFile(h.path, h.buf)
		}
		delete(d.handles, b.FID)
		return map[string]any{"fid": b.FID, "err": 0}, nil

	case "dir":
		var b struct {
			Path   string `json:"path"`
			Offset int    `json:"offset"`
			Lines  int    `json:"lines"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, fmt.Sprintf("dir %s %d %d", b.Path, b.Offset, b.Lines))
		if !d.dirs[b.Path] {
			return map[string]any{"list": []any{}, "err": 5}, nil
		}
		entries := d.children(b.Path)
		if b.Offset >= len(entries) {
			return map[string]any{"list": []Entry{}, "err": 0}, nil
		}
		end := min(b.Offset+b.Lines, len(entries))
		return map[string]any{"list": entries[b.Offset:end], "err": 0}, nil

	case "delete":
		var b struct {
			Path string `json:"path"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, "delete "+b.Path)
		if code, ok := d.deleteErr[b.Path]; ok {
			return map[string]any{"err": code}, nil
		}
		if _, ok := d.files[b.Path]; ok {
			delete(d.files, b.Path)
			return map[string]any{"err": 0}, nil
		}
		if d.dirs[b.Path] {
			delete(d.dirs, b.Path)
			return map[string]any{"err": 0}, nil
		}
		return map[string]any{"err": 4}, nil

	case "rename", "move", "copy":
		var b struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, fmt.Sprintf("%s %s %s", key, b.From, b.To))
		if data, ok := d.files[b.From]; ok {
			d.addFile(b.To, data)
			if key != "copy" {
				delete(d.files, b.From)
			}
			return map[string]any{"err": 0}, nil
		}
		return map[string]any{"err": 4}, nil

	case "mkdir":
		var b struct {
			Path string `json:"path"`
		}
		json.Unmarshal(body, &b)
		d.ops = append(d.ops, "mkdir "+b.Path)
		d.addDir(b.Path)
		return map[string]any{"err": 0}, nil
	}
	return nil, nil
}

// children must hold d.mu. Listing order is deterministic: name order.
func (d *fakeDeluge) children(dir string) []Entry {
	var names []string
	seen := map[string]bool{}
	for p := range d.files {
		if ParentPath(p) == dir && !seen[BaseName(p)] {
			names = append(names, BaseName(p))
			seen[BaseName(p)] = true
		}
	}
	for p := range d.dirs {
		if p != "/" && ParentPath(p) == dir && !seen[BaseName(p)] {
			names = append(names, BaseName(p))
			seen[BaseName(p)] = true
		}
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, n := range names {
		full := JoinPath(dir, n)
		if d.dirs[full] {
			entries = append(entries, Entry{Name: n, Attr: AttrDirectory})
		} else {
			entries = append(entries, Entry{Name: n, Attr: AttrArchive, Size: int64(len(d.files[full]))})
		}
	}
	return entries
}
