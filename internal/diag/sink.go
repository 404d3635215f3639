// Package diag defines the write-only diagnostics channel the delivery
// core reports into. Every failed attempt is pushed here immediately,
// before any further recovery action, so operators see it even if the
// process dies moments later.
package diag

import (
	"time"

	"mailnotify/internal/eventbus"
	logx "mailnotify/pkg/logx"
)

// Failure describes one failed delivery attempt.
type Failure struct {
	Target  string
	Stage   string
	Attempt int
	Err     error
	At      time.Time
}

// Success describes one completed delivery.
type Success struct {
	Target  string
	Attempt int
	Elapsed time.Duration
	At      time.Time
}

// Sink accepts failure records and success events. Implementations must
// never block the delivery path and must never panic into it.
type Sink interface {
	Failure(f Failure)
	Success(s Success)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Failure(Failure) {}
func (Nop) Success(Success) {}

// LogSink writes diagnostics to the structured log. The debug flag is an
// explicit constructor argument (not an ambient env read) and gates the
// success-path notices; failures are always logged.
type LogSink struct {
	log   logx.Logger
	debug bool
}

func NewLogSink(log logx.Logger, debug bool) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log, debug: debug}
}

func (s *LogSink) Failure(f Failure) {
	s.log.Error("delivery attempt failed",
		logx.String("target", f.Target),
		logx.String("stage", f.Stage),
		logx.Int("attempt", f.Attempt),
		logx.Err(f.Err))
}

func (s *LogSink) Success(ev Success) {
	if !s.debug {
		return
	}
	s.log.Info("delivery ok",
		logx.String("target", ev.Target),
		logx.Int("attempt", ev.Attempt),
		logx.Duration("took", ev.Elapsed))
}

// Event types published by BusSink.
const (
	EventFailure = "delivery.failure"
	EventSuccess = "delivery.success"
)

// BusSink fans diagnostics out to event bus subscribers.
type BusSink struct {
	bus eventbus.Bus
}

func NewBusSink(bus eventbus.Bus) *BusSink { return &BusSink{bus: bus} }

func (s *BusSink) Failure(f Failure) {
	s.bus.Publish(eventbus.Event{Type: EventFailure, Time: f.At, Data: f})
}

func (s *BusSink) Success(ev Success) {
	s.bus.Publish(eventbus.Event{Type: EventSuccess, Time: ev.At, Data: ev})
}

// Multi forwards each event to every sink in order.
type Multi []Sink

func (m Multi) Failure(f Failure) {
	for _, s := range m {
		if s != nil {
			s.Failure(f)
		}
	}
}

func (m Multi) Success(ev Success) {
	for _, s := range m {
		if s != nil {
			s.Success(ev)
		}
	}
}
