// Package config loads, validates, and (optionally) watches the
// mailnotify configuration. Files may be JSON or YAML; the environment
// overlays the file; unknown fields are rejected.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "mailnotify/pkg/logx"
)

// Manager owns the committed configuration. The delivery core takes a
// snapshot at construction and never reloads; Watch exists for the daemon
// to pick up heartbeat/logging changes between deliveries.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	// subsMu guards the subscriber list.
	subsMu sync.Mutex
	subs   []chan *Config

	log logx.Logger

	// lastHash tracks the last successfully committed config content, to
	// avoid redundant publishes when an editor fires multiple write events.
	lastHash uint64
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// Parse reads and strictly decodes the config file, then overlays the
// environment. A missing file is not an error when the environment can
// carry the whole configuration (path == "" skips the file entirely).
func (m *Manager) Parse() (*Config, error) {
	var cfg Config
	if m.path != "" {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return nil, err
		}
		jb, _, err := coerceToJSONBytes(m.path, b)
		if err != nil {
			return nil, err
		}

		dec := json.NewDecoder(bytes.NewReader(jb))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
		// reject trailing tokens (e.g. concatenated JSON)
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			if err == nil {
				return nil, fmt.Errorf("invalid config: trailing data")
			}
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load parses and commits in one step.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

// Watch re-parses the file on write events and publishes validated,
// changed configs to subscribers. It returns when ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(m.path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Editors often replace the file; give the write a moment to settle
			// and re-add the path in case the inode changed.
			time.Sleep(100 * time.Millisecond)
			_ = w.Add(m.path)
			m.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("config watcher error", logx.Err(err))
		}
	}
}

func (m *Manager) reload() {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config reload rejected", logx.Err(err))
		return
	}
	h := hashConfig(cfg)
	m.mu.Lock()
	same := h == m.lastHash
	if !same {
		m.cfg = cfg
		m.lastHash = h
	}
	m.mu.Unlock()
	if same {
		return
	}

	m.log.Info("config reloaded", logx.String("path", m.path))
	m.subsMu.Lock()
	subs := append([]chan *Config(nil), m.subs...)
	m.subsMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// normalize fills derivable defaults before validation.
func normalize(cfg *Config) {
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	// Historically the sender address doubles as the login.
	if cfg.SMTP.Username == "" {
		cfg.SMTP.Username = cfg.Delivery.From
	}
}

// Validate rejects configs the delivery core cannot run with.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		return errors.New("smtp.host is required")
	}
	if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port out of range: %d", cfg.SMTP.Port)
	}
	if cfg.SMTP.Password == "" {
		return errors.New("smtp.password is required")
	}
	if strings.TrimSpace(cfg.Delivery.From) == "" {
		return errors.New("delivery.from is required")
	}
	if len(cfg.Delivery.To) == 0 {
		return errors.New("delivery.to must list at least one recipient")
	}
	if _, err := ParseDurationField("delivery.max_session_age", cfg.Delivery.MaxSessionAge); err != nil {
		return err
	}
	if _, err := ParseDurationField("delivery.submit_timeout", cfg.Delivery.SubmitTimeout); err != nil {
		return err
	}
	if cfg.History != nil {
		if _, err := ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("history.retention", cfg.History.Retention); err != nil {
			return err
		}
	}
	return nil
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
