package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
)

// envOverlay mirrors the environment variables the notifier historically
// honored. Environment values win over the config file, so a batch job can
// point an existing config at another mailbox without editing it.
type envOverlay struct {
	SMTP     string `env:"MAILNOTIFY_SMTP"`     // "host:port"
	Sender   string `env:"MAILNOTIFY_SENDER"`   // envelope from (and default login)
	Receiver string `env:"MAILNOTIFY_RECEIVER"` // comma-separated recipients
	Username string `env:"MAILNOTIFY_USERNAME"`
	Password string `env:"MAILNOTIFY_PASSWORD"`
	Debug    bool   `env:"MAILNOTIFY_DEBUG"`
}

func applyEnv(cfg *Config) error {
	var o envOverlay
	// envdecode reports an error when no tagged field is set in the
	// environment; that is the common case here, not a failure.
	_ = envdecode.Decode(&o)

	if o.SMTP != "" {
		host, portStr, err := net.SplitHostPort(o.SMTP)
		if err != nil {
			return fmt.Errorf("MAILNOTIFY_SMTP: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("MAILNOTIFY_SMTP: invalid port %q", portStr)
		}
		cfg.SMTP.Host = host
		cfg.SMTP.Port = port
	}
	if o.Sender != "" {
		cfg.Delivery.From = o.Sender
	}
	if o.Receiver != "" {
		var to []string
		for _, r := range strings.Split(o.Receiver, ",") {
			if r = strings.TrimSpace(r); r != "" {
				to = append(to, r)
			}
		}
		cfg.Delivery.To = to
	}
	if o.Username != "" {
		cfg.SMTP.Username = o.Username
	}
	if o.Password != "" {
		cfg.SMTP.Password = o.Password
	}
	if o.Debug {
		cfg.Debug = true
	}
	return nil
}
