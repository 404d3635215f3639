package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"mailnotify/internal/config"
	"mailnotify/internal/diag"
	"mailnotify/internal/eventbus"
	"mailnotify/internal/heartbeat"
	"mailnotify/internal/history"
	"mailnotify/internal/notifier"
	"mailnotify/internal/session"
	logx "mailnotify/pkg/logx"
)

func main() {
	var (
		cfgPath    string
		daemonMode bool
		subject    string
		body       string
	)
	flag.StringVar(&cfgPath, "config", "", "path to config file (json or yaml); may be omitted when MAILNOTIFY_* env vars carry the configuration")
	flag.BoolVar(&daemonMode, "daemon", false, "stay running and send scheduled heartbeats")
	flag.StringVar(&subject, "subject", "", "subject for one-shot send mode")
	flag.StringVar(&body, "body", "-", "body for one-shot send mode; \"-\" reads stdin")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer log.Close()
	mgr.SetLogger(log)

	app, err := build(cfg, log)
	if err != nil {
		log.Error("startup failed", logx.Err(err))
		os.Exit(1)
	}
	defer app.close()

	if daemonMode {
		runDaemon(ctx, mgr, app, log)
		return
	}

	if err := runSend(ctx, app, subject, body); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired delivery stack.
type app struct {
	svc   *notifier.Service
	bus   eventbus.Bus
	store history.Store
	cfg   *config.Config
}

func build(cfg *config.Config, log logx.Logger) (*app, error) {
	maxAge, err := config.ParseDurationOrDefault("delivery.max_session_age", cfg.Delivery.MaxSessionAge, notifier.DefaultMaxSessionAge)
	if err != nil {
		return nil, err
	}
	timeout, err := config.ParseDurationOrDefault("delivery.submit_timeout", cfg.Delivery.SubmitTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	factory, err := session.NewFactory(
		session.Endpoint{Host: cfg.SMTP.Host, Port: cfg.SMTP.Port},
		session.Credentials{Username: cfg.SMTP.Username, Password: cfg.SMTP.Password},
		timeout,
		log,
	)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	sinks := diag.Multi{diag.NewLogSink(log, cfg.Debug), diag.NewBusSink(bus)}

	var store history.Store
	if cfg.History != nil {
		busyTimeout, err := config.ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
		if err != nil {
			return nil, err
		}
		retention, err := config.ParseDurationField("history.retention", cfg.History.Retention)
		if err != nil {
			return nil, err
		}
		store, err = history.Open(history.Config{
			Driver:      cfg.History.Driver,
			Path:        cfg.History.Path,
			BusyTimeout: busyTimeout,
			Retention:   retention,
		}, log)
		if err != nil {
			return nil, err
		}
		if store != nil {
			sinks = append(sinks, history.NewSink(store, log))
		}
	}

	target := fmt.Sprintf("%s:%d/%s", cfg.SMTP.Host, cfg.SMTP.Port, strings.Join(cfg.Delivery.To, ","))
	connMgr := notifier.NewManager(
		notifier.Config{Target: target, MaxSessionAge: maxAge},
		notifier.FactoryFunc(func(ctx context.Context) (notifier.Session, error) {
			return factory.Open(ctx)
		}),
		sinks,
		log,
	)
	svc := notifier.NewService(notifier.ServiceConfig{
		From:       cfg.Delivery.From,
		To:         cfg.Delivery.To,
		RatePerMin: cfg.Delivery.RatePerMin,
	}, connMgr, log)

	return &app{svc: svc, bus: bus, store: store, cfg: cfg}, nil
}

func (a *app) close() {
	a.svc.Stop()
	if a.store != nil {
		_ = a.store.Close()
	}
}

func runSend(ctx context.Context, a *app, subject, body string) error {
	if body == "-" {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal: reading stdin:", err)
			return err
		}
		body = string(b)
	}
	// The typed result drives the exit code; diagnostics went to the sink.
	return a.svc.Deliver(ctx, subject, body)
}

func runDaemon(ctx context.Context, mgr *config.Manager, a *app, log logx.Logger) {
	hbCfg := heartbeat.Config{}
	if a.cfg.Heartbeat != nil {
		hbCfg = heartbeat.Config{
			Enabled:  a.cfg.Heartbeat.Enabled,
			Schedule: a.cfg.Heartbeat.Schedule,
			Subject:  a.cfg.Heartbeat.Subject,
		}
	}
	hb, err := heartbeat.New(hbCfg, a.svc, log)
	if err != nil {
		log.Error("heartbeat setup failed", logx.Err(err))
		os.Exit(1)
	}
	hb.Start()

	// hbMu guards hb against the reload goroutine below.
	var hbMu sync.Mutex
	stopHB := func(cur *heartbeat.Service) {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		cur.Stop(stopCtx)
		cancel()
	}

	// Pick up heartbeat changes without a restart. Delivery settings stay
	// fixed for the lifetime of the connection manager.
	sub := mgr.Subscribe(1)
	go func() {
		for cfg := range sub {
			next := heartbeat.Config{}
			if cfg.Heartbeat != nil {
				next = heartbeat.Config{
					Enabled:  cfg.Heartbeat.Enabled,
					Schedule: cfg.Heartbeat.Schedule,
					Subject:  cfg.Heartbeat.Subject,
				}
			}
			replacement, err := heartbeat.New(next, a.svc, log)
			if err != nil {
				log.Warn("ignoring heartbeat config change", logx.Err(err))
				continue
			}
			hbMu.Lock()
			stopHB(hb)
			hb = replacement
			hb.Start()
			hbMu.Unlock()
		}
	}()

	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	// Mirror delivery outcomes into the systemd status line.
	events, unsubEvents := a.bus.Subscribe(16)
	defer unsubEvents()
	go func() {
		var ok, failed int
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				switch e.Type {
				case diag.EventSuccess:
					ok++
				case diag.EventFailure:
					failed++
				}
				_, _ = sd.SdNotify(false, fmt.Sprintf("STATUS=%d delivered, %d failed attempts", ok, failed))
			}
		}
	}()

	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
	log.Info("daemon ready")

	<-ctx.Done()

	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	hbMu.Lock()
	stopHB(hb)
	hbMu.Unlock()
}
