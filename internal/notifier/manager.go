// Package notifier owns the connection lifecycle of the delivery client:
// when an existing session is still usable, when silent death must be
// detected, and how to recover without losing the caller's message.
package notifier

import (
	"context"
	"sync"
	"time"

	"mailnotify/internal/diag"
	"mailnotify/internal/session"
	logx "mailnotify/pkg/logx"
)

// DefaultMaxSessionAge is the staleness threshold: sessions older than this
// are discarded without even probing them.
const DefaultMaxSessionAge = 300 * time.Second

// Config for a Manager. Target is a human-readable identity for the
// notification target (endpoint/recipient) carried in diagnostics.
type Config struct {
	Target        string
	MaxSessionAge time.Duration
}

// Manager holds at most one live session and exposes a single Deliver
// operation. It is the sole owner and sole mutator of the session handle;
// callers never see it.
//
// A mutex guards the whole delivery cycle so concurrent Deliver calls
// cannot break the at-most-one-live-session invariant; calls serialize.
type Manager struct {
	mu sync.Mutex

	factory Factory
	sink    diag.Sink
	log     logx.Logger

	target string
	maxAge time.Duration

	sess        Session
	lastSuccess time.Time
	closed      bool
}

func NewManager(cfg Config, factory Factory, sink diag.Sink, log logx.Logger) *Manager {
	if cfg.MaxSessionAge <= 0 {
		cfg.MaxSessionAge = DefaultMaxSessionAge
	}
	if sink == nil {
		sink = diag.Nop{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		factory: factory,
		sink:    sink,
		log:     log,
		target:  cfg.Target,
		maxAge:  cfg.MaxSessionAge,
	}
}

// Deliver transmits one message through the current or a freshly created
// session. On failure it runs the recovery policy: exactly one more full
// cycle (fresh session, fresh submit) before giving up with a
// *DeliveryError. Every failed attempt is pushed to the diagnostics sink
// before any further action.
//
// The context bounds session creation only; an in-flight submit runs to
// completion or to the session's own timeout.
func (m *Manager) Deliver(ctx context.Context, msg session.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}

	start := time.Now()

	s, err := m.ensureSession(ctx)
	if err != nil {
		m.report(StageConnect, 1, err)
		return m.retry(ctx, msg, start)
	}
	if err := s.Submit(msg); err != nil {
		// The session is presumed dead; discard it before retrying.
		m.dropSession()
		m.report(StageSubmit, 1, err)
		return m.retry(ctx, msg, start)
	}

	m.succeed(1, start)
	return nil
}

// retry is the recovery policy: one fresh session, one fresh submit, then
// give up. No further attempts follow a retry failure.
func (m *Manager) retry(ctx context.Context, msg session.Message, start time.Time) error {
	s, err := m.openFresh(ctx)
	if err != nil {
		m.report(StageReconnect, 2, err)
		return &DeliveryError{Stage: StageReconnect, Attempt: 2, Cause: err}
	}
	if err := s.Submit(msg); err != nil {
		m.dropSession()
		m.report(StageFinal, 2, err)
		return &DeliveryError{Stage: StageFinal, Attempt: 2, Cause: err}
	}

	m.succeed(2, start)
	return nil
}

// ensureSession returns a session believed healthy: the held one if it is
// young enough and answers a probe, otherwise a fresh one.
func (m *Manager) ensureSession(ctx context.Context) (Session, error) {
	if m.sess != nil {
		switch {
		case m.sess.Age() >= m.maxAge:
			m.log.Debug("session stale, reconnecting",
				logx.Duration("age", m.sess.Age()),
				logx.Duration("max_age", m.maxAge))
			m.dropSession()
		case !m.sess.Probe():
			m.log.Debug("session probe failed, reconnecting")
			m.dropSession()
		default:
			return m.sess, nil
		}
	}
	return m.openFresh(ctx)
}

// openFresh must only be called with no session held.
func (m *Manager) openFresh(ctx context.Context) (Session, error) {
	s, err := m.factory.Open(ctx)
	if err != nil {
		return nil, err
	}
	m.sess = s
	return s, nil
}

func (m *Manager) dropSession() {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
}

func (m *Manager) succeed(attempt int, start time.Time) {
	m.lastSuccess = time.Now()
	m.sink.Success(diag.Success{
		Target:  m.target,
		Attempt: attempt,
		Elapsed: time.Since(start),
		At:      m.lastSuccess,
	})
}

func (m *Manager) report(stage string, attempt int, err error) {
	m.sink.Failure(diag.Failure{
		Target:  m.target,
		Stage:   stage,
		Attempt: attempt,
		Err:     err,
		At:      time.Now(),
	})
}

// LastSuccess reports when the manager last delivered, zero if never.
func (m *Manager) LastSuccess() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSuccess
}

// Shutdown closes any held session. It is idempotent and never fails; it
// is safe from deferred cleanup paths where nothing can catch an error.
// Close errors are discarded, not logged: teardown can run after the
// diagnostics channel is already gone.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.dropSession()
}
