package sysex

import (
	"bytes"
	"sync"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
)

const (
	// DefaultReassemblyLimit caps how many bytes accumulate for one
	// message before a forced flush.
	DefaultReassemblyLimit = 64 * 1024
	// DefaultReassemblyIdle flushes a partial message when the port goes
	// quiet mid-frame.
	DefaultReassemblyIdle = 16 * time.Millisecond
)

// Reassembler coalesces sysex deliveries that the OS MIDI stack split
// across multiple callbacks. Only JSON data-transfer traffic (command
// 0x04 with a '{' payload) is buffered; display and debug frames pass
// through untouched so UI-facing output keeps its latency.
type Reassembler struct {
	Enabled bool
	Limit   int
	Idle    time.Duration

	emit func([]byte)

	mu      sync.Mutex
	bufs    map[byte]*fragmentBuffer
	current byte // message id continuation chunks without a header belong to
	active  bool
}

type fragmentBuffer struct {
	data  []byte
	timer *time.Timer
}

// NewReassembler builds a reassembler delivering coalesced messages to
// emit. A disabled reassembler passes every delivery straight through.
func NewReassembler(emit func([]byte)) *Reassembler {
	return &Reassembler{
		Enabled: true,
		Limit:   DefaultReassemblyLimit,
		Idle:    DefaultReassemblyIdle,
		emit:    emit,
		bufs:    make(map[byte]*fragmentBuffer),
	}
}

// Push feeds one MIDI delivery into the reassembler.
func (r *Reassembler) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	if !r.Enabled {
		r.emit(data)
		return
	}

	r.mu.Lock()
	if data[0] != SysexStart {
		// Continuation bytes for the message currently in flight.
		if buf, ok := r.bufs[r.current]; ok && r.active {
			r.append(r.current, buf, data)
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
		r.emit(data)
		return
	}

	cmd, mid, first, ok := peekHeader(data)
	if !ok || cmd != CmdJSON || first != '{' {
		// Display, debug, ping and anything unparseable is delivered
		// immediately.
		r.mu.Unlock()
		r.emit(data)
		return
	}

	if buf, exists := r.bufs[mid]; exists {
		// Later fragment of a message we already hold: keep the payload,
		// drop the repeated header.
		r.append(mid, buf, stripHeader(data))
		r.mu.Unlock()
		return
	}

	if data[len(data)-1] == SysexEnd {
		r.mu.Unlock()
		r.emit(data)
		return
	}

	buf := &fragmentBuffer{data: append([]byte(nil), data...)}
	r.bufs[mid] = buf
	r.current = mid
	r.active = true
	r.armTimer(mid, buf)
	r.mu.Unlock()
}

// append must hold r.mu.
func (r *Reassembler) append(mid byte, buf *fragmentBuffer, data []byte) {
	buf.data = append(buf.data, data...)
	if buf.data[len(buf.data)-1] == SysexEnd || len(buf.data) >= r.Limit {
		r.flushLocked(mid, buf)
		return
	}
	r.armTimer(mid, buf)
}

// armTimer must hold r.mu.
func (r *Reassembler) armTimer(mid byte, buf *fragmentBuffer) {
	if buf.timer != nil {
		buf.timer.Stop()
	}
	buf.timer = time.AfterFunc(r.Idle, func() {
		r.mu.Lock()
		if cur, ok := r.bufs[mid]; ok && cur == buf {
			logger.Debug().Int("bytes", len(buf.data)).Msg("flushing stale sysex fragment")
			r.flushLocked(mid, buf)
		}
		r.mu.Unlock()
	})
}

// flushLocked must hold r.mu.
func (r *Reassembler) flushLocked(mid byte, buf *fragmentBuffer) {
	if buf.timer != nil {
		buf.timer.Stop()
	}
	delete(r.bufs, mid)
	if r.current == mid {
		r.active = false
	}
	r.emit(buf.data)
}

// peekHeader extracts command, message id and the first payload byte
// without a full parse.
func peekHeader(data []byte) (cmd, mid, first byte, ok bool) {
	body := data[1:]
	switch {
	case len(body) > 0 && body[0] == DeveloperID:
		body = body[1:]
	case bytes.HasPrefix(body, SynthstromID):
		body = body[len(SynthstromID):]
	default:
		return 0, 0, 0, false
	}
	if len(body) < 3 {
		return 0, 0, 0, false
	}
	return body[0], body[1], body[2], true
}

// stripHeader removes the sysex header from a continuation fragment so
// only payload bytes are appended.
func stripHeader(data []byte) []byte {
	body := data[1:]
	if len(body) > 0 && body[0] == DeveloperID {
		return body[3:]
	}
	if bytes.HasPrefix(body, SynthstromID) {
		return body[len(SynthstromID)+2:]
	}
	return data
}
