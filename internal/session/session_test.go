package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	logx "mailnotify/pkg/logx"
)

type fakeTransport struct {
	noopErr error
	sendErr error

	noops  int
	quits  int
	closes int
	sent   []string
	froms  []string
	rcpts  [][]string
}

func (t *fakeTransport) Noop() error {
	t.noops++
	return t.noopErr
}

func (t *fakeTransport) Send(from string, to []string, payload []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.froms = append(t.froms, from)
	t.rcpts = append(t.rcpts, to)
	t.sent = append(t.sent, string(payload))
	return nil
}

func (t *fakeTransport) Quit() error {
	t.quits++
	return errors.New("quit refused") // must be swallowed by Close
}

func (t *fakeTransport) Close() error {
	t.closes++
	return nil
}

func TestSubmitEncodesMessage(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	h := newHandle(tr)

	msg := Message{
		From:    "sender@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Run finished",
		Body:    "all good",
	}
	if err := h.Submit(msg); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent = %d payloads, want 1", len(tr.sent))
	}
	payload := tr.sent[0]
	for _, want := range []string{
		"From: sender@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Run finished\r\n",
		"\r\n\r\nall good",
	} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload missing %q:\n%s", want, payload)
		}
	}
	if tr.froms[0] != "sender@example.com" {
		t.Fatalf("envelope from = %q", tr.froms[0])
	}
	if len(tr.rcpts[0]) != 2 {
		t.Fatalf("envelope rcpts = %v", tr.rcpts[0])
	}
}

func TestSubmitClassifiesFailure(t *testing.T) {
	t.Parallel()
	cause := errors.New("454 temporary failure")
	h := newHandle(&fakeTransport{sendErr: cause})

	err := h.Submit(Message{From: "a@x", To: []string{"b@x"}})
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("err = %v, want ErrSubmitFailed kind", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestCloseIdempotentAndSwallowsErrors(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	h := newHandle(tr)

	h.Close()
	h.Close()
	h.Close()

	if tr.quits != 1 || tr.closes != 1 {
		t.Fatalf("quits/closes = %d/%d, want 1/1", tr.quits, tr.closes)
	}
}

func TestClosedHandleRefusesEverything(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	h := newHandle(tr)
	h.Close()

	if h.Probe() {
		t.Fatal("Probe on closed handle must be false")
	}
	if err := h.Submit(Message{From: "a@x", To: []string{"b@x"}}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit on closed handle = %v, want ErrClosed", err)
	}
	if tr.noops != 0 {
		t.Fatal("closed handle must not touch the wire")
	}
}

func TestProbeReflectsTransportHealth(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	h := newHandle(tr)
	if !h.Probe() {
		t.Fatal("healthy probe = false")
	}

	tr.noopErr = errors.New("connection reset")
	if h.Probe() {
		t.Fatal("probe must be false when the no-op round trip fails")
	}
}

func TestAge(t *testing.T) {
	t.Parallel()
	h := newHandle(&fakeTransport{})
	if h.Age() < 0 || h.Age() > time.Minute {
		t.Fatalf("fresh handle age = %v", h.Age())
	}
	h.created = time.Now().Add(-10 * time.Minute)
	if h.Age() < 10*time.Minute {
		t.Fatalf("backdated handle age = %v, want >= 10m", h.Age())
	}
}

func TestNewFactoryValidation(t *testing.T) {
	t.Parallel()
	creds := Credentials{Username: "u@example.com", Password: "secret"}

	tests := []struct {
		name     string
		endpoint Endpoint
		creds    Credentials
		wantErr  bool
	}{
		{name: "ok", endpoint: Endpoint{Host: "smtp.example.com", Port: 587}, creds: creds},
		{name: "missing host", endpoint: Endpoint{Port: 587}, creds: creds, wantErr: true},
		{name: "port zero", endpoint: Endpoint{Host: "smtp.example.com"}, creds: creds, wantErr: true},
		{name: "port too large", endpoint: Endpoint{Host: "smtp.example.com", Port: 70000}, creds: creds, wantErr: true},
		{name: "missing password", endpoint: Endpoint{Host: "smtp.example.com", Port: 587}, creds: Credentials{Username: "u"}, wantErr: true},
		{name: "missing username", endpoint: Endpoint{Host: "smtp.example.com", Port: 587}, creds: Credentials{Password: "p"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(tt.endpoint, tt.creds, 0, logx.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFactory error = %v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestFactoryDefaultTimeout(t *testing.T) {
	t.Parallel()
	f, err := NewFactory(Endpoint{Host: "smtp.example.com", Port: 587}, Credentials{Username: "u", Password: "p"}, 0, logx.Nop())
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	if f.timeout != defaultTimeout {
		t.Fatalf("timeout = %v, want %v", f.timeout, defaultTimeout)
	}
}
