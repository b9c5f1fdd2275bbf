package sysex

import (
	"context"
	"testing"
	"time"
)

// deluge scripts a device that speaks the session management subset.
type deluge struct {
	port *scriptedPort
	tp   *Transport

	// answerStandardID controls whether pings with the Synthstrom
	// prefix get a reply, for capability detection tests.
	answerStandardID bool
}

func newDeluge(t *testing.T) *deluge {
	t.Helper()
	d := &deluge{port: &scriptedPort{}, answerStandardID: true}
	d.tp = NewTransport(d.port)
	d.tp.JSONTimeout = 50 * time.Millisecond
	d.tp.BinaryTimeout = 100 * time.Millisecond
	d.port.handler = d.handle
	return d
}

func (d *deluge) handle(f Frame) {
	if !d.answerStandardID && !d.tp.UsesDeveloperID() {
		return // firmware that only listens on the developer id
	}
	var body string
	switch frameKey(f) {
	case "ping":
		body = `{"^ping":{}}`
	case "session":
		body = `{"^session":{"sid":2,"midMin":65,"midMax":79}}`
	case "closeSession":
		body = `{"^closeSession":{"err":0}}`
	default:
		return
	}
	raw, _ := BuildFrame(Frame{Command: CmdJSON, MsgID: f.MsgID, JSON: []byte(body)}, d.tp.UsesDeveloperID())
	d.tp.Feed(raw)
}

// commandKeys flattens the observed wire traffic to request keys.
func (d *deluge) commandKeys() []string {
	var out []string
	for _, f := range d.port.sentFrames() {
		out = append(out, frameKey(f))
	}
	return out
}

func TestSessionLazyOpen(t *testing.T) {
	d := newDeluge(t)
	sm := NewSessionManager(d.tp, "test")

	if err := sm.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	sess := sm.Current()
	if sess == nil {
		t.Fatal("expected a session after the first command")
	}
	if sess.SID != 2 || sess.MidMin != 65 || sess.MidMax != 79 {
		t.Errorf("session fields: %+v", sess)
	}

	// probe ping, session open, then the command itself
	want := []string{"ping", "session", "ping"}
	got := d.commandKeys()
	if len(got) != len(want) {
		t.Fatalf("wire traffic %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wire traffic %v, want %v", got, want)
		}
	}
}

func TestSessionAutoRenewal(t *testing.T) {
	d := newDeluge(t)
	sm := NewSessionManager(d.tp, "test")
	sm.RenewThreshold = 20

	ctx := context.Background()
	for i := 0; i < 21; i++ {
		if err := sm.Ping(ctx); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
	}

	keys := d.commandKeys()
	// probe + open, 20 pings, then close/open, then the 21st ping.
	want := []string{"ping", "session"}
	for i := 0; i < 20; i++ {
		want = append(want, "ping")
	}
	want = append(want, "closeSession", "session", "ping")

	if len(keys) != len(want) {
		t.Fatalf("wire traffic has %d commands, want %d: %v", len(keys), len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("command %d is %q, want %q (full: %v)", i, keys[i], want[i], keys)
		}
	}

	renewals := 0
	for _, k := range keys {
		if k == "closeSession" {
			renewals++
		}
	}
	if renewals != 1 {
		t.Errorf("expected exactly one renewal, saw %d", renewals)
	}
}

func TestCapabilityFallbackToDeveloperID(t *testing.T) {
	d := newDeluge(t)
	d.answerStandardID = false
	sm := NewSessionManager(d.tp, "test")

	if err := sm.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !d.tp.UsesDeveloperID() {
		t.Error("transport should have switched to the developer id")
	}

	// The mode is sticky: no second probe on the next command.
	before := len(d.port.sentFrames())
	if err := sm.Ping(context.Background()); err != nil {
		t.Fatalf("second Ping: %v", err)
	}
	if got := len(d.port.sentFrames()) - before; got != 1 {
		t.Errorf("second ping sent %d frames, want 1", got)
	}
}

func TestSessionResetOnTimeoutThenReopen(t *testing.T) {
	d := newDeluge(t)
	sm := NewSessionManager(d.tp, "test")

	ctx := context.Background()
	if err := sm.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	// Device stops answering: the next command times out and the
	// session is reset before the error surfaces.
	d.port.mu.Lock()
	d.port.handler = nil
	d.port.mu.Unlock()
	if err := sm.Ping(ctx); err == nil {
		t.Fatal("expected timeout")
	}
	if sm.Current() != nil {
		t.Fatal("session should be reset after a timeout")
	}

	// Device recovers: the next command re-opens a session first.
	d.port.mu.Lock()
	d.port.handler = d.handle
	d.port.mu.Unlock()
	before := len(d.port.sentFrames())
	if err := sm.Ping(ctx); err != nil {
		t.Fatalf("Ping after recovery: %v", err)
	}
	keys := d.commandKeys()[before:]
	if len(keys) != 2 || keys[0] != "session" || keys[1] != "ping" {
		t.Errorf("post-recovery traffic %v, want [session ping]", keys)
	}
}

func TestExplicitOpenAndClose(t *testing.T) {
	d := newDeluge(t)
	sm := NewSessionManager(d.tp, "")

	sess, err := sm.OpenSession(context.Background(), "mytag")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if sess.Tag != "mytag" {
		t.Errorf("tag %q, want mytag", sess.Tag)
	}

	if err := sm.CloseSession(context.Background()); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if sm.Current() != nil {
		t.Error("session should be gone after close")
	}
}
