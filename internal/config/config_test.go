package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const baseJSON = `{
  "smtp": {"host": "smtp.example.com", "port": 587, "password": "secret"},
  "delivery": {
    "from": "sender@example.com",
    "to": ["receiver@example.com"],
    "max_session_age": "5m",
    "submit_timeout": "30s"
  },
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}}
}`

const baseYAML = `smtp:
  host: smtp.example.com
  port: 587
  password: secret
delivery:
  from: sender@example.com
  to:
    - receiver@example.com
  max_session_age: 5m
  submit_timeout: 30s
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSONAndYAMLEquivalent(t *testing.T) {
	jsonCfg, err := NewManager(writeTemp(t, "c.json", baseJSON)).Parse()
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	yamlCfg, err := NewManager(writeTemp(t, "c.yaml", baseYAML)).Parse()
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if !reflect.DeepEqual(jsonCfg, yamlCfg) {
		t.Fatalf("json and yaml configs differ:\n%+v\n%+v", jsonCfg, yamlCfg)
	}
}

func TestUsernameDefaultsToSender(t *testing.T) {
	cfg, err := NewManager(writeTemp(t, "c.json", baseJSON)).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.SMTP.Username != "sender@example.com" {
		t.Fatalf("username = %q, want sender address", cfg.SMTP.Username)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	bad := `{"smtp": {"host": "h", "port": 587, "password": "p", "bogus": 1},
  "delivery": {"from": "a@x", "to": ["b@x"]}, "logging": {"level": "", "console": true, "file": {"enabled": false, "path": ""}}}`
	if _, err := NewManager(writeTemp(t, "c.json", bad)).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestEnvOverlayWins(t *testing.T) {
	t.Setenv("MAILNOTIFY_SMTP", "mail.override.dev:2525")
	t.Setenv("MAILNOTIFY_SENDER", "env-sender@example.com")
	t.Setenv("MAILNOTIFY_RECEIVER", "one@example.com, two@example.com")
	t.Setenv("MAILNOTIFY_PASSWORD", "env-secret")
	t.Setenv("MAILNOTIFY_DEBUG", "true")

	cfg, err := NewManager(writeTemp(t, "c.json", baseJSON)).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.SMTP.Host != "mail.override.dev" || cfg.SMTP.Port != 2525 {
		t.Fatalf("endpoint = %s:%d, want env override", cfg.SMTP.Host, cfg.SMTP.Port)
	}
	if cfg.Delivery.From != "env-sender@example.com" {
		t.Fatalf("from = %q", cfg.Delivery.From)
	}
	if len(cfg.Delivery.To) != 2 || cfg.Delivery.To[1] != "two@example.com" {
		t.Fatalf("to = %v", cfg.Delivery.To)
	}
	if cfg.SMTP.Password != "env-secret" {
		t.Fatalf("password not overridden")
	}
	if !cfg.Debug {
		t.Fatal("debug flag not set from env")
	}
}

func TestEnvOnlyConfig(t *testing.T) {
	t.Setenv("MAILNOTIFY_SMTP", "smtp.example.com:587")
	t.Setenv("MAILNOTIFY_SENDER", "sender@example.com")
	t.Setenv("MAILNOTIFY_RECEIVER", "receiver@example.com")
	t.Setenv("MAILNOTIFY_PASSWORD", "secret")

	cfg, err := NewManager("").Parse()
	if err != nil {
		t.Fatalf("parse from env only: %v", err)
	}
	if cfg.SMTP.Username != "sender@example.com" {
		t.Fatalf("username = %q", cfg.SMTP.Username)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	valid := func() *Config {
		return &Config{
			SMTP:     SMTPConfig{Host: "h", Port: 587, Username: "u", Password: "p"},
			Delivery: DeliveryConfig{From: "a@x", To: []string{"b@x"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing host", func(c *Config) { c.SMTP.Host = "" }},
		{"port out of range", func(c *Config) { c.SMTP.Port = 99999 }},
		{"missing password", func(c *Config) { c.SMTP.Password = "" }},
		{"missing sender", func(c *Config) { c.Delivery.From = "" }},
		{"no recipients", func(c *Config) { c.Delivery.To = nil }},
		{"bad duration", func(c *Config) { c.Delivery.MaxSessionAge = "five minutes" }},
		{"negative duration", func(c *Config) { c.Delivery.SubmitTimeout = "-10s" }},
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid()
			tt.mutate(c)
			if err := Validate(c); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 300*time.Second)
	if err != nil || d != 300*time.Second {
		t.Fatalf("empty = (%v, %v), want default", d, err)
	}
	d, err = ParseDurationOrDefault("x", "45s", 300*time.Second)
	if err != nil || d != 45*time.Second {
		t.Fatalf("45s = (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", 0); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
