package session

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	logx "mailnotify/pkg/logx"
)

// Endpoint is the remote delivery host.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Credentials authenticate the session. Both fields are required; the
// factory refuses to speak to a server it cannot log in to.
type Credentials struct {
	Username string
	Password string
}

const defaultTimeout = 30 * time.Second

// Factory produces authenticated SMTP sessions against one fixed endpoint.
//
// Dial, STARTTLS, and AUTH all happen synchronously inside Open, under the
// same timeout discipline as submission, so a hung server cannot stall the
// caller indefinitely.
type Factory struct {
	endpoint Endpoint
	creds    Credentials
	timeout  time.Duration
	log      logx.Logger
}

func NewFactory(endpoint Endpoint, creds Credentials, timeout time.Duration, log logx.Logger) (*Factory, error) {
	if strings.TrimSpace(endpoint.Host) == "" {
		return nil, errors.New("session: endpoint host is required")
	}
	if endpoint.Port <= 0 || endpoint.Port > 65535 {
		return nil, errors.New("session: endpoint port out of range")
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("session: credentials are required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Factory{endpoint: endpoint, creds: creds, timeout: timeout, log: log}, nil
}

// Open dials the endpoint and authenticates. On success the returned handle
// is live and ready to submit; on any failure nothing is returned and the
// error is classified as ErrConnectFailed or ErrAuthFailed.
func (f *Factory) Open(ctx context.Context) (*Handle, error) {
	start := time.Now()

	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", f.endpoint.Addr())
	if err != nil {
		return nil, classify(ErrConnectFailed, err)
	}

	// One deadline covers the whole greeting/TLS/auth exchange.
	_ = conn.SetDeadline(time.Now().Add(f.timeout))

	c, err := smtp.NewClient(conn, f.endpoint.Host)
	if err != nil {
		_ = conn.Close()
		return nil, classify(ErrConnectFailed, err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: f.endpoint.Host}); err != nil {
			_ = c.Close()
			return nil, classify(ErrConnectFailed, err)
		}
	}

	auth := smtp.PlainAuth("", f.creds.Username, f.creds.Password, f.endpoint.Host)
	if err := c.Auth(auth); err != nil {
		_ = c.Close()
		return nil, classify(ErrAuthFailed, err)
	}

	// Per-operation deadlines take over from here.
	_ = conn.SetDeadline(time.Time{})

	f.log.Debug("session opened",
		logx.String("endpoint", f.endpoint.Addr()),
		logx.Duration("took", time.Since(start)))

	return newHandle(&smtpTransport{c: c, conn: conn, timeout: f.timeout}), nil
}

// smtpTransport drives a net/smtp client with a fresh deadline armed
// before every operation.
type smtpTransport struct {
	c       *smtp.Client
	conn    net.Conn
	timeout time.Duration
}

func (t *smtpTransport) arm() {
	if t.timeout > 0 {
		_ = t.conn.SetDeadline(time.Now().Add(t.timeout))
	}
}

func (t *smtpTransport) Noop() error {
	t.arm()
	return t.c.Noop()
}

func (t *smtpTransport) Send(from string, to []string, payload []byte) error {
	t.arm()
	if err := t.c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := t.c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := t.c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (t *smtpTransport) Quit() error {
	t.arm()
	return t.c.Quit()
}

func (t *smtpTransport) Close() error {
	return t.c.Close()
}
