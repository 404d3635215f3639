// Package history persists delivery outcomes so operators can audit what
// was sent, what failed, and at which stage, independent of the log stream.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"mailnotify/internal/diag"
	logx "mailnotify/pkg/logx"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the history store.
//
// Driver values:
//   - "file": dependency-free file backend (append-only jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retention   time.Duration // prune rows older than this; 0 keeps forever
}

// Attempt records one delivery outcome.
// Keep it compact and schema-stable.
type Attempt struct {
	At      time.Time
	Target  string
	Stage   string // empty on success
	Attempt int
	OK      bool
	Error   string
}

// Store is the minimal persistence API used by the diagnostics sink.
type Store interface {
	Append(ctx context.Context, a Attempt) error
	Recent(ctx context.Context, limit int) ([]Attempt, error)
	Prune(ctx context.Context, keep time.Duration) (removed int, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if history is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + driver)
	}
}

// appendTimeout bounds one store write from the delivery path.
const appendTimeout = 2 * time.Second

// Sink adapts a Store to the diagnostics channel. Store errors are logged
// and dropped; persistence trouble must never block or fail a delivery.
type Sink struct {
	st  Store
	log logx.Logger
}

func NewSink(st Store, log logx.Logger) *Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{st: st, log: log}
}

func (s *Sink) Failure(f diag.Failure) {
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	s.append(Attempt{At: f.At, Target: f.Target, Stage: f.Stage, Attempt: f.Attempt, OK: false, Error: errText})
}

func (s *Sink) Success(ev diag.Success) {
	s.append(Attempt{At: ev.At, Target: ev.Target, Attempt: ev.Attempt, OK: true})
}

func (s *Sink) append(a Attempt) {
	if s.st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := s.st.Append(ctx, a); err != nil {
		s.log.Warn("history append failed", logx.Err(err))
	}
}
