package sysex

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// scriptedPort is an in-memory MIDI device. Every sent frame is recorded
// and handed to the handler, which may feed replies straight back into
// the transport.
type scriptedPort struct {
	mu      sync.Mutex
	sent    []Frame
	handler func(f Frame)
}

func (p *scriptedPort) Send(data []byte) error {
	f, err := ParseFrame(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.sent = append(p.sent, f)
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(f)
	}
	return nil
}

func (p *scriptedPort) sentFrames() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Frame(nil), p.sent...)
}

// frameKey returns the single top-level key of a request frame.
func frameKey(f Frame) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(f.JSON, &obj); err != nil {
		return ""
	}
	for k := range obj {
		return k
	}
	return ""
}

// reply builds a reply frame for mid with the given JSON body.
func replyFrame(t *testing.T, tp *Transport, mid byte, body string, binary []byte) []byte {
	t.Helper()
	raw, err := BuildFrame(Frame{Command: CmdJSON, MsgID: mid, JSON: []byte(body), Binary: binary}, tp.UsesDeveloperID())
	if err != nil {
		t.Fatalf("building reply: %v", err)
	}
	return raw
}

func TestSendJSONCorrelation(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)
	port.handler = func(f Frame) {
		// An unrelated reply first; the waiter must not take it.
		tp.Feed(replyFrame(t, tp, f.MsgID+1, `{"^ping":{"stray":1}}`, nil))
		tp.Feed(replyFrame(t, tp, f.MsgID, `{"^ping":{}}`, nil))
	}

	reply, err := tp.SendJSON(context.Background(), PingRequest{}, nil)
	if err != nil {
		t.Fatalf("SendJSON: %v", err)
	}
	if string(reply.JSON) != `{"^ping":{}}` {
		t.Errorf("got reply %s, want the frame matching our message id", reply.JSON)
	}
}

func TestSendJSONSequentialIDs(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)
	port.handler = func(f Frame) {
		tp.Feed(replyFrame(t, tp, f.MsgID, `{"^ping":{}}`, nil))
	}

	for i := 0; i < 3; i++ {
		if _, err := tp.SendJSON(context.Background(), PingRequest{}, nil); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	sent := port.sentFrames()
	for i, f := range sent {
		if int(f.MsgID) != i {
			t.Errorf("frame %d has mid %d", i, f.MsgID)
		}
	}
}

func TestSendJSONTimeoutResetsSession(t *testing.T) {
	port := &scriptedPort{} // never replies
	tp := NewTransport(port)
	tp.JSONTimeout = 20 * time.Millisecond

	resets := 0
	tp.SetResetHook(func() { resets++ })

	_, err := tp.SendJSON(context.Background(), PingRequest{}, nil)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if resets != 1 {
		t.Errorf("reset hook ran %d times, want 1", resets)
	}

	// The pending record is gone: a late reply is dropped, not delivered.
	tp.Feed(replyFrame(t, tp, 0, `{"^ping":{}}`, nil))
}

func TestSendJSONCancellation(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)
	tp.JSONTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	port.handler = func(Frame) { cancel() }

	_, err := tp.SendJSON(ctx, PingRequest{}, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	// Cancelled before any I/O: nothing further is sent.
	before := len(port.sentFrames())
	if _, err := tp.SendJSON(ctx, PingRequest{}, nil); err == nil {
		t.Fatal("expected immediate cancellation")
	}
	if got := len(port.sentFrames()); got != before {
		t.Errorf("cancelled send reached the port: %d frames, want %d", got, before)
	}
}

func TestSendJSONNoPort(t *testing.T) {
	tp := NewTransport(nil)
	if _, err := tp.SendJSON(context.Background(), PingRequest{}, nil); err == nil {
		t.Fatal("expected NoOutput error")
	}
	if err := tp.SendRaw([]byte{0xF0, 0x7D, 0xF7}); err == nil {
		t.Fatal("expected NoOutput error from SendRaw")
	}
}

func TestSendRawValidation(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)
	if err := tp.SendRaw([]byte{0x00, 0x01}); err == nil {
		t.Error("expected error for unbracketed bytes")
	}
}

func TestSendCustomSysex(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)

	if err := tp.SendCustomSysex("F0 7D 03 00 01 F7"); err != nil {
		t.Fatalf("SendCustomSysex: %v", err)
	}
	if err := tp.SendCustomSysex("00 01 F7"); err == nil {
		t.Error("expected rejection without F0")
	}
	if err := tp.SendCustomSysex("F0 ZZ F7"); err == nil {
		t.Error("expected rejection of bad hex")
	}
}

func TestSubscribe(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)

	var events []Event
	unsubscribe := tp.Subscribe(func(ev Event) { events = append(events, ev) })

	tp.Feed([]byte{0xF0, 0x7D, CmdDebug, 0x00, 'h', 'i', 0xF7})
	if len(events) != 1 || events[0].Command != CmdDebug {
		t.Fatalf("expected one debug event, got %v", events)
	}

	unsubscribe()
	tp.Feed([]byte{0xF0, 0x7D, CmdDebug, 0x00, 'h', 'i', 0xF7})
	if len(events) != 1 {
		t.Error("listener still delivered after unsubscribe")
	}
}

func TestBinaryReply(t *testing.T) {
	port := &scriptedPort{}
	tp := NewTransport(port)
	payload := []byte{0x00, 0x80, 0xFF, 0x12}
	port.handler = func(f Frame) {
		tp.Feed(replyFrame(t, tp, f.MsgID, `{"^read":{"err":0}}`, payload))
	}

	reply, err := tp.SendJSON(context.Background(), map[string]any{"read": map[string]int{"fid": 1}}, nil)
	if err != nil {
		t.Fatalf("SendJSON: %v", err)
	}
	if string(reply.Binary) != string(payload) {
		t.Errorf("binary mismatch: got %v, want %v", reply.Binary, payload)
	}
}
