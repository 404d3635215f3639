package notifier

import (
	"context"
	"errors"
	"testing"

	logx "mailnotify/pkg/logx"
)

func TestNotifySwallowsDeliveryFailure(t *testing.T) {
	t.Parallel()
	f := &fakeFactory{errs: []error{errors.New("down"), errors.New("down")}}
	sink := &recSink{}
	mgr := newTestManager(f, sink, 0)
	svc := NewService(ServiceConfig{From: "a@example.com", To: []string{"b@example.com"}}, mgr, logx.Nop())

	// Must not panic and must not surface the failure; the caller's
	// workflow continues regardless of delivery outcome.
	svc.Notify(context.Background(), "subject", "body")

	if len(sink.failures) != 2 {
		t.Fatalf("failure records = %d, want 2", len(sink.failures))
	}
}

func TestServiceDeliverReturnsTypedResult(t *testing.T) {
	t.Parallel()
	f := &fakeFactory{errs: []error{errors.New("down"), errors.New("down")}}
	mgr := newTestManager(f, &recSink{}, 0)
	svc := NewService(ServiceConfig{From: "a@example.com", To: []string{"b@example.com"}}, mgr, logx.Nop())

	err := svc.Deliver(context.Background(), "subject", "body")
	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
}

func TestServiceEnvelope(t *testing.T) {
	t.Parallel()
	s1 := &fakeSession{probeOK: true}
	f := &fakeFactory{sessions: []*fakeSession{s1}}
	mgr := newTestManager(f, &recSink{}, 0)
	svc := NewService(ServiceConfig{From: "a@example.com", To: []string{"b@example.com", "c@example.com"}}, mgr, logx.Nop())

	if err := svc.Deliver(context.Background(), "subject", "body"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if s1.submits != 1 {
		t.Fatalf("submits = %d, want 1", s1.submits)
	}
}
