// Package session wraps one live, authenticated SMTP connection behind a
// Handle with a deliberately small surface: probe, submit, close, age.
//
// Sessions to remote mail endpoints can die silently (server-side idle
// timeout, NAT table eviction) without the local socket reporting closure.
// The Handle does not try to hide that; it gives the owning manager the
// primitives to detect it (Probe) and to bound its exposure (Age).
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Message is one piece of mail handed to Submit. The body is opaque plain
// text; header assembly happens at submit time.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

func (m Message) encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// transport is the protocol surface a Handle drives. The real
// implementation wraps net/smtp; tests substitute a fake.
type transport interface {
	// Noop issues the protocol health-check round trip.
	Noop() error
	// Send transmits one encoded message.
	Send(from string, to []string, payload []byte) error
	// Quit ends the session gracefully.
	Quit() error
	// Close tears down the underlying connection.
	Close() error
}

// Handle owns one live session. It is created by Factory.Open and closed
// exactly once by its owner; a closed handle fails every operation and is
// never reused.
type Handle struct {
	mu      sync.Mutex
	tr      transport
	created time.Time
	closed  bool
}

func newHandle(tr transport) *Handle {
	return &Handle{tr: tr, created: time.Now()}
}

// Age reports elapsed time since the session was authenticated.
func (h *Handle) Age() time.Duration {
	return time.Since(h.created)
}

// Probe issues a lightweight no-op round trip. It never returns an error:
// any protocol failure, timeout, or use after Close reads as false.
func (h *Handle) Probe() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	return h.tr.Noop() == nil
}

// Submit transmits the message over the session. Failures (disconnect,
// timeout, protocol rejection) come back as ErrSubmitFailed with the
// underlying cause attached; the caller decides whether the handle is
// still trustworthy.
func (h *Handle) Submit(msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if err := h.tr.Send(msg.From, msg.To, msg.encode()); err != nil {
		return classify(ErrSubmitFailed, err)
	}
	return nil
}

// Close shuts the session down, best effort. It is idempotent and swallows
// every error from the close sequence itself; a failing QUIT must never
// propagate to the owner's teardown path.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	_ = h.tr.Quit()
	_ = h.tr.Close()
}
