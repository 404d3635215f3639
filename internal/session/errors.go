package session

import "errors"

var (
	// ErrConnectFailed marks a network-level failure while opening a session.
	ErrConnectFailed = errors.New("session connect failed")
	// ErrAuthFailed marks a credential rejection during session setup.
	ErrAuthFailed = errors.New("session auth failed")
	// ErrSubmitFailed marks a failure while transmitting a payload.
	ErrSubmitFailed = errors.New("session submit failed")
	// ErrClosed marks an operation attempted on an already-closed handle.
	// The manager's discipline makes this unreachable in normal operation.
	ErrClosed = errors.New("session closed")
)

// classified pairs one of the sentinel kinds above with its cause, so
// callers can branch on errors.Is(err, ErrAuthFailed) and still unwrap the
// underlying protocol error.
type classified struct {
	kind  error
	cause error
}

func classify(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &classified{kind: kind, cause: cause}
}

func (c *classified) Error() string { return c.kind.Error() + ": " + c.cause.Error() }

func (c *classified) Unwrap() error { return c.cause }

func (c *classified) Is(target error) bool { return target == c.kind }
