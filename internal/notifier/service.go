package notifier

import (
	"context"

	"mailnotify/internal/session"
	logx "mailnotify/pkg/logx"

	"golang.org/x/time/rate"
)

// ServiceConfig shapes the fire-and-forget notification surface.
//
// From and To are the fixed envelope for every notification; RatePerMin
// optionally paces deliveries so a chatty caller cannot trip provider
// throttling (0 disables pacing).
type ServiceConfig struct {
	From       string
	To         []string
	RatePerMin int
}

// Service is the caller-facing wrapper around a Manager. Notify never
// returns a delivery error: message delivery is best-effort, failures are
// visible through the diagnostics sink only, and the calling workflow
// continues unaffected.
type Service struct {
	mgr     *Manager
	log     logx.Logger
	limiter *rate.Limiter

	from string
	to   []string
}

func NewService(cfg ServiceConfig, mgr *Manager, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), 1)
	}
	return &Service{
		mgr:     mgr,
		log:     log,
		limiter: limiter,
		from:    cfg.From,
		to:      append([]string(nil), cfg.To...),
	}
}

// Notify delivers a subject/body notification to the configured recipients.
// Failures have already been reported to the diagnostics sink by the
// recovery policy; they are swallowed here by contract.
func (s *Service) Notify(ctx context.Context, subject, body string) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("notification dropped before send", logx.Err(err))
			return
		}
	}
	msg := session.Message{From: s.from, To: s.to, Subject: subject, Body: body}
	if err := s.mgr.Deliver(ctx, msg); err != nil {
		s.log.Debug("notification delivery gave up", logx.Err(err))
	}
}

// Deliver exposes the typed result for callers that need to branch on the
// outcome (the CLI's one-shot send mode does).
func (s *Service) Deliver(ctx context.Context, subject, body string) error {
	msg := session.Message{From: s.from, To: s.to, Subject: subject, Body: body}
	return s.mgr.Deliver(ctx, msg)
}

// Stop tears down the underlying manager.
func (s *Service) Stop() { s.mgr.Shutdown() }
