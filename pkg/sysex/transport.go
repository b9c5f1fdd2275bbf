package sysex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
)

// Port is the MIDI byte channel supplied by the environment. Send
// transmits one complete sysex frame.
type Port interface {
	Send(data []byte) error
}

// Event is one decoded incoming sysex message, delivered to subscribers.
type Event struct {
	Command byte
	MsgID   byte
	JSON    []byte
	Binary  []byte
	Raw     []byte
}

// Reply carries the JSON object of a matched response plus its unpacked
// binary payload, if any.
type Reply struct {
	JSON   []byte
	Binary []byte
}

const (
	DefaultJSONTimeout   = 3 * time.Second
	DefaultBinaryTimeout = 10 * time.Second
)

// Transport owns the MIDI output. It serializes sends, assigns message
// IDs, correlates replies by the echoed ID and enforces deadlines. One
// JSON request is in flight at a time; concurrent callers queue on the
// send lock.
type Transport struct {
	JSONTimeout   time.Duration
	BinaryTimeout time.Duration

	portMu      sync.Mutex
	port        Port
	developerID bool

	ids MsgIDGenerator

	// sendMu serializes send_json against the single MIDI link.
	sendMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[byte]chan Frame

	listenerMu   sync.Mutex
	listeners    map[int]func(Event)
	nextListener int

	resetMu   sync.Mutex
	resetHook func()

	reasm *Reassembler
}

func NewTransport(port Port) *Transport {
	t := &Transport{
		JSONTimeout:   DefaultJSONTimeout,
		BinaryTimeout: DefaultBinaryTimeout,
		port:          port,
		pending:       make(map[byte]chan Frame),
		listeners:     make(map[int]func(Event)),
	}
	t.reasm = NewReassembler(t.dispatch)
	return t
}

// SetPort attaches or detaches (nil) the MIDI output.
func (t *Transport) SetPort(port Port) {
	t.portMu.Lock()
	t.port = port
	t.portMu.Unlock()
}

func (t *Transport) currentPort() Port {
	t.portMu.Lock()
	defer t.portMu.Unlock()
	return t.port
}

// SetDeveloperID switches the manufacturer addressing mode. The session
// manager flips this once during capability detection; the mode is
// sticky afterwards.
func (t *Transport) SetDeveloperID(v bool) {
	t.portMu.Lock()
	t.developerID = v
	t.portMu.Unlock()
}

func (t *Transport) UsesDeveloperID() bool {
	t.portMu.Lock()
	defer t.portMu.Unlock()
	return t.developerID
}

// SetResetHook installs the session invalidation callback.
func (t *Transport) SetResetHook(fn func()) {
	t.resetMu.Lock()
	t.resetHook = fn
	t.resetMu.Unlock()
}

// ResetSession discards session state via the installed hook. Called on
// timeouts and reply corruption before the error is surfaced.
func (t *Transport) ResetSession() {
	t.resetMu.Lock()
	fn := t.resetHook
	t.resetMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Reassembler exposes the fragment reassembler for configuration.
func (t *Transport) Reassembler() *Reassembler {
	return t.reasm
}

// ResetMsgIDs rewinds the message ID counter. Tests only.
func (t *Transport) ResetMsgIDs() {
	t.ids.Reset()
}

// Feed routes raw bytes from the MIDI input through the reassembler.
func (t *Transport) Feed(data []byte) {
	t.reasm.Push(data)
}

func (t *Transport) dispatch(raw []byte) {
	frame, err := ParseFrame(raw)
	if err != nil {
		logger.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping malformed sysex")
		return
	}

	t.notify(Event{
		Command: frame.Command,
		MsgID:   frame.MsgID,
		JSON:    frame.JSON,
		Binary:  frame.Binary,
		Raw:     raw,
	})

	if frame.Command != CmdJSON {
		return
	}

	t.pendingMu.Lock()
	ch, ok := t.pending[frame.MsgID]
	if ok {
		delete(t.pending, frame.MsgID)
	}
	t.pendingMu.Unlock()

	if !ok {
		logger.Warn().Int("mid", int(frame.MsgID)).Msg("dropping unmatched reply")
		return
	}
	ch <- frame
}

func (t *Transport) notify(ev Event) {
	t.listenerMu.Lock()
	fns := make([]func(Event), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.listenerMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribe registers a listener for every incoming message and returns
// its unsubscribe function.
func (t *Transport) Subscribe(fn func(Event)) func() {
	t.listenerMu.Lock()
	id := t.nextListener
	t.nextListener++
	t.listeners[id] = fn
	t.listenerMu.Unlock()
	return func() {
		t.listenerMu.Lock()
		delete(t.listeners, id)
		t.listenerMu.Unlock()
	}
}

// SendRaw transmits a complete sysex frame without correlation.
func (t *Transport) SendRaw(data []byte) error {
	if len(data) < 2 || data[0] != SysexStart || data[len(data)-1] != SysexEnd {
		return errors.FrameFormat("raw send requires F0..F7 bracketing")
	}
	port := t.currentPort()
	if port == nil {
		return errors.NoOutput()
	}
	return port.Send(data)
}

// SendCustomSysex parses a user-supplied hex string and transmits it.
func (t *Transport) SendCustomSysex(hex string) error {
	data, err := ParseHexSysex(hex)
	if err != nil {
		return err
	}
	return t.SendRaw(data)
}

// SendJSON sends a request object and awaits the matching reply. The
// deadline defaults to JSONTimeout, or BinaryTimeout when the request
// carries binary.
func (t *Transport) SendJSON(ctx context.Context, payload any, binary []byte) (*Reply, error) {
	timeout := t.JSONTimeout
	if binary != nil {
		timeout = t.BinaryTimeout
	}
	return t.SendJSONTimeout(ctx, payload, binary, timeout)
}

// SendJSONTimeout is SendJSON with an explicit deadline; commands that
// expect a binary-carrying reply pass the longer one.
func (t *Transport) SendJSONTimeout(ctx context.Context, payload any, binary []byte, timeout time.Duration) (*Reply, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.Cancelled("request not sent")
	}

	jsonBytes, err := MarshalASCII(payload)
	if err != nil {
		return nil, errors.NewWithError(errors.ExitCodeGeneral, "failed to encode request", err)
	}

	mid := t.ids.Next()
	frame, err := BuildFrame(Frame{Command: CmdJSON, MsgID: mid, JSON: jsonBytes, Binary: binary}, t.UsesDeveloperID())
	if err != nil {
		return nil, err
	}

	ch := make(chan Frame, 1)
	t.pendingMu.Lock()
	if _, dup := t.pending[mid]; dup {
		// A stale waiter still holds this ID after a wrap; it has lost.
		logger.Warn().Int("mid", int(mid)).Msg("message id reused while reply outstanding")
	}
	t.pending[mid] = ch
	t.pendingMu.Unlock()

	port := t.currentPort()
	if port == nil {
		t.removePending(mid)
		return nil, errors.NoOutput()
	}
	logger.Trace().Int("mid", int(mid)).Int("bytes", len(frame)).RawJSON("req", jsonBytes).Msg("sysex send")
	if err := port.Send(frame); err != nil {
		t.removePending(mid)
		return nil, errors.NewWithError(errors.ExitCodeTransport, "midi send failed", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return &Reply{JSON: reply.JSON, Binary: reply.Binary}, nil
	case <-ctx.Done():
		t.removePending(mid)
		return nil, errors.Cancelled(fmt.Sprintf("awaiting reply %d", mid))
	case <-timer.C:
		t.removePending(mid)
		t.ResetSession()
		return nil, errors.Timeout(fmt.Sprintf("message %d after %s", mid, timeout))
	}
}

func (t *Transport) removePending(mid byte) {
	t.pendingMu.Lock()
	delete(t.pending, mid)
	t.pendingMu.Unlock()
}
