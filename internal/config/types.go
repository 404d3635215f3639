package config

// Config is the on-disk configuration. The file may be JSON or YAML; YAML
// is coerced to JSON so both go through the same strict decoder.
//
// All durations are Go duration strings (e.g. "30s", "5m").
type Config struct {
	SMTP     SMTPConfig     `json:"smtp"`
	Delivery DeliveryConfig `json:"delivery"`
	Logging  LoggingConfig  `json:"logging"`

	History   *HistoryConfig   `json:"history,omitempty"`
	Heartbeat *HeartbeatConfig `json:"heartbeat,omitempty"`

	// Debug enables success-path diagnostics notices. It can also be
	// switched on with MAILNOTIFY_DEBUG=1.
	Debug bool `json:"debug,omitempty"`
}

// SMTPConfig locates and authenticates against the delivery endpoint.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// DeliveryConfig shapes the connection manager and the notification
// envelope.
//
// Defaults (when fields are omitted/zero):
//   - max_session_age: "300s"
//   - submit_timeout: "30s"
//   - rate_per_min: 0 (pacing disabled)
type DeliveryConfig struct {
	From string   `json:"from"`
	To   []string `json:"to"`

	// MaxSessionAge is the staleness threshold: sessions older than this
	// are replaced without probing.
	MaxSessionAge string `json:"max_session_age,omitempty"`

	// SubmitTimeout bounds every network operation on a session,
	// including the initial connect and authenticate exchange.
	SubmitTimeout string `json:"submit_timeout,omitempty"`

	RatePerMin int `json:"rate_per_min,omitempty"`
}

// HistoryConfig controls the optional delivery-history store.
//
// Example:
//
//	"history": { "driver": "sqlite", "path": "./mailnotify.db" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention   string `json:"retention,omitempty"`    // e.g. "720h"; empty keeps forever
}

// HeartbeatConfig controls periodic "still alive" notifications in daemon
// mode. Schedule is a standard 5-field cron expression.
type HeartbeatConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // default "0 * * * *"
	Subject  string `json:"subject,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
