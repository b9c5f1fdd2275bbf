package sysex

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"

	"github.com/google/uuid"
)

// DefaultRenewThreshold renews the session after this many commands.
// The device allocates handles from a small cycling pool; renewing well
// before exhaustion keeps long transfers from tripping over it.
const DefaultRenewThreshold = 20

// Session is the device-side context commands run in.
type Session struct {
	SID    byte
	MidMin byte
	MidMax byte
	Tag    string
}

// SessionManager opens sessions lazily, renews them transparently on
// operation count and tears them down on transport resets. One manager
// per Transport.
type SessionManager struct {
	RenewThreshold int
	Tag            string

	tp *Transport

	mu       sync.Mutex
	sess     *Session
	msgCount int
	probed   bool
}

func NewSessionManager(tp *Transport, tag string) *SessionManager {
	if tag == "" {
		tag = "delctl-" + uuid.NewString()[:8]
	}
	m := &SessionManager{
		RenewThreshold: DefaultRenewThreshold,
		Tag:            tag,
		tp:             tp,
	}
	tp.SetResetHook(m.invalidate)
	return m
}

// Current returns the open session, or nil.
func (m *SessionManager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// invalidate drops session state without device I/O. Installed as the
// transport reset hook, so it must not send.
func (m *SessionManager) invalidate() {
	m.mu.Lock()
	hadSession := m.sess != nil
	m.sess = nil
	m.msgCount = 0
	m.mu.Unlock()
	if hadSession {
		logger.Debug().Msg("session invalidated")
	}
}

// EnsureSession guarantees an open, non-stale session before a command
// send. Renewal happens here, transparently to the caller.
func (m *SessionManager) EnsureSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	probed := m.probed
	sess := m.sess
	count := m.msgCount
	m.mu.Unlock()

	if !probed {
		if err := m.probe(ctx); err != nil {
			return nil, err
		}
	}

	if sess != nil && count < m.renewThreshold() {
		return sess, nil
	}

	if sess != nil {
		logger.Debug().Int("messages", count).Msg("renewing session")
		m.closeQuietly(ctx)
	}

	return m.open(ctx, m.Tag)
}

func (m *SessionManager) renewThreshold() int {
	if m.RenewThreshold > 0 {
		return m.RenewThreshold
	}
	return DefaultRenewThreshold
}

// probe performs capability detection: ping with the standard
// manufacturer prefix, fall back to the developer ID once. The chosen
// mode is sticky.
func (m *SessionManager) probe(ctx context.Context) error {
	if m.tp.UsesDeveloperID() {
		m.setProbed()
		return nil
	}
	if _, err := m.tp.SendJSON(ctx, PingRequest{}, nil); err != nil {
		if errors.IsCancelled(err) {
			return err
		}
		logger.Debug().Err(err).Msg("standard manufacturer id probe failed, trying developer id")
		m.tp.SetDeveloperID(true)
		if _, err := m.tp.SendJSON(ctx, PingRequest{}, nil); err != nil {
			m.tp.SetDeveloperID(false)
			return err
		}
	}
	m.setProbed()
	return nil
}

func (m *SessionManager) setProbed() {
	m.mu.Lock()
	m.probed = true
	m.mu.Unlock()
}

func (m *SessionManager) open(ctx context.Context, tag string) (*Session, error) {
	reply, err := m.tp.SendJSON(ctx, sessionRequest{Session: sessionBody{Tag: tag}}, nil)
	if err != nil {
		return nil, err
	}
	body, err := UnwrapReply(reply.JSON, "session")
	if err != nil {
		m.tp.ResetSession()
		return nil, err
	}
	var sr sessionReply
	if err := json.Unmarshal(body, &sr); err != nil {
		m.tp.ResetSession()
		return nil, errors.UnexpectedReply("undecodable session reply")
	}
	sess := &Session{
		SID:    byte(sr.SID),
		MidMin: byte(sr.MidMin),
		MidMax: byte(sr.MidMax),
		Tag:    tag,
	}
	m.mu.Lock()
	m.sess = sess
	m.msgCount = 0
	m.mu.Unlock()
	logger.Debug().Int("sid", sr.SID).Int("midMin", sr.MidMin).Int("midMax", sr.MidMax).Msg("session opened")
	return sess, nil
}

// OpenSession opens a fresh session explicitly, closing any current one.
func (m *SessionManager) OpenSession(ctx context.Context, tag string) (*Session, error) {
	if !m.isProbed() {
		if err := m.probe(ctx); err != nil {
			return nil, err
		}
	}
	if m.Current() != nil {
		m.closeQuietly(ctx)
	}
	if tag == "" {
		tag = m.Tag
	}
	return m.open(ctx, tag)
}

func (m *SessionManager) isProbed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probed
}

// CloseSession closes the current session on the device, if any.
func (m *SessionManager) CloseSession(ctx context.Context) error {
	if m.Current() == nil {
		return nil
	}
	_, err := m.tp.SendJSON(ctx, closeSessionRequest{}, nil)
	m.invalidate()
	return err
}

func (m *SessionManager) closeQuietly(ctx context.Context) {
	if _, err := m.tp.SendJSON(ctx, closeSessionRequest{}, nil); err != nil {
		logger.Warn().Err(err).Msg("close of stale session failed")
	}
	m.invalidate()
}

// Ping runs a full liveness command, session semantics included.
func (m *SessionManager) Ping(ctx context.Context) error {
	_, err := m.Exchange(ctx, PingRequest{}, nil, 0)
	return err
}

// Exchange is the command funnel: ensure a live session, send, count the
// message toward renewal. A timeout of zero picks the transport default.
func (m *SessionManager) Exchange(ctx context.Context, payload any, binary []byte, timeout time.Duration) (*Reply, error) {
	if _, err := m.EnsureSession(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.msgCount++
	m.mu.Unlock()
	if timeout <= 0 {
		return m.tp.SendJSON(ctx, payload, binary)
	}
	return m.tp.SendJSONTimeout(ctx, payload, binary, timeout)
}

// Transport returns the underlying transport.
func (m *SessionManager) Transport() *Transport {
	return m.tp
}
