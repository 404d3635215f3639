package diag

import (
	"errors"
	"testing"
	"time"

	"mailnotify/internal/eventbus"
	logx "mailnotify/pkg/logx"
)

type recSink struct {
	failures  []Failure
	successes []Success
}

func (r *recSink) Failure(f Failure) { r.failures = append(r.failures, f) }
func (r *recSink) Success(s Success) { r.successes = append(r.successes, s) }

func TestMultiFansOutInOrder(t *testing.T) {
	t.Parallel()
	a, b := &recSink{}, &recSink{}
	m := Multi{a, nil, b} // nil entries are tolerated

	m.Failure(Failure{Target: "t", Stage: "submit", Attempt: 1, Err: errors.New("boom")})
	m.Success(Success{Target: "t", Attempt: 2})

	for _, s := range []*recSink{a, b} {
		if len(s.failures) != 1 || len(s.successes) != 1 {
			t.Fatalf("sink got %d/%d events, want 1/1", len(s.failures), len(s.successes))
		}
	}
}

func TestBusSinkPublishes(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	sink := NewBusSink(bus)
	sink.Failure(Failure{Target: "t", Stage: "final", Attempt: 2, At: time.Now()})

	select {
	case e := <-ch:
		if e.Type != EventFailure {
			t.Fatalf("event type = %q, want %q", e.Type, EventFailure)
		}
		f, ok := e.Data.(Failure)
		if !ok || f.Stage != "final" {
			t.Fatalf("event data = %+v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}
}

func TestLogSinkNeverPanics(t *testing.T) {
	t.Parallel()
	// Zero logger and nil error must both be safe on the delivery path.
	s := NewLogSink(logx.Logger{}, true)
	s.Failure(Failure{Target: "t", Stage: "connect", Attempt: 1})
	s.Success(Success{Target: "t", Attempt: 1})
}
