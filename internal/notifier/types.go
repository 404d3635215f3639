package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailnotify/internal/session"
)

// Session is one live authenticated connection to the delivery endpoint.
// *session.Handle implements it; tests substitute fakes.
type Session interface {
	Probe() bool
	Submit(msg session.Message) error
	Close()
	Age() time.Duration
}

// Factory produces fresh authenticated sessions.
type Factory interface {
	Open(ctx context.Context) (Session, error)
}

// FactoryFunc adapts a function (or a concrete factory's Open method) to
// the Factory interface.
type FactoryFunc func(ctx context.Context) (Session, error)

func (f FactoryFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// Delivery stages, reported with each failure record.
const (
	StageConnect   = "connect"   // first attempt, opening or reusing a session
	StageSubmit    = "submit"    // first attempt, payload transmission
	StageReconnect = "reconnect" // retry attempt, opening the fresh session
	StageFinal     = "final"     // retry attempt, payload transmission
)

// ErrManagerClosed is returned by Deliver after Shutdown. It signals caller
// misuse, not a delivery failure, and is not reported to the sink.
var ErrManagerClosed = errors.New("notifier: manager closed")

// DeliveryError is the terminal outcome of a delivery cycle after the
// retry policy has given up.
type DeliveryError struct {
	Stage   string
	Attempt int
	Cause   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed at %s (attempt %d): %v", e.Stage, e.Attempt, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }
