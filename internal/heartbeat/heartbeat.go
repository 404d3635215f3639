// Package heartbeat sends periodic "still alive" notifications in daemon
// mode, so a silent mailbox means the process is down rather than merely
// idle.
package heartbeat

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "mailnotify/pkg/logx"
)

const defaultSchedule = "0 * * * *"

// Notifier is the outbound surface the heartbeat posts through.
// *notifier.Service implements it.
type Notifier interface {
	Notify(ctx context.Context, subject, body string)
}

type Config struct {
	Enabled  bool
	Schedule string // standard 5-field cron expression
	Subject  string
}

type Service struct {
	c       *cron.Cron
	log     logx.Logger
	started time.Time
}

// New validates the schedule and builds the service. A disabled config
// yields (nil, nil).
func New(cfg Config, n Notifier, log logx.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	spec := strings.TrimSpace(cfg.Schedule)
	if spec == "" {
		spec = defaultSchedule
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "mailnotify heartbeat"
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("heartbeat.schedule: %w", err)
	}

	s := &Service{
		c:       cron.New(cron.WithParser(parser)),
		log:     log,
		started: time.Now(),
	}
	_, err := s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		n.Notify(ctx, subject, s.body())
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) body() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("host: %s\npid: %d\nuptime: %s\n",
		host, os.Getpid(), time.Since(s.started).Round(time.Second))
}

func (s *Service) Start() {
	if s == nil {
		return
	}
	s.c.Start()
	s.log.Info("heartbeat started")
}

// Stop halts scheduling and waits for an in-flight heartbeat to finish,
// bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	done := s.c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
