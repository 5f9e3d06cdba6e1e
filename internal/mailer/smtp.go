package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/logging"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// TLS modes.
const (
	TLSImplicit = "implicit"
	TLSStartTLS = "starttls"
	TLSNone     = "none"
)

const (
	// DefaultAddr is Gmail's implicit TLS submission endpoint.
	DefaultAddr    = "smtp.gmail.com:465"
	DefaultTimeout = 30 * time.Second
)

// Config holds the SMTP connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	// TLSMode is one of TLSImplicit, TLSStartTLS or TLSNone.
	TLSMode string
	// Timeout bounds one complete send, from dial to QUIT.
	Timeout time.Duration
	// TLSConfig overrides the client TLS configuration.
	TLSConfig *tls.Config
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("SMTP address is required")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid SMTP address %q: %w", c.Addr, err)
	}
	switch c.TLSMode {
	case "", TLSImplicit, TLSStartTLS, TLSNone:
	default:
		return fmt.Errorf("unsupported SMTP TLS mode %q (valid: implicit, starttls, none)", c.TLSMode)
	}
	if c.Username == "" && c.Password != "" {
		return errors.New("SMTP password set without a username")
	}
	return nil
}

// Option configures an SMTPMailer.
type Option func(*SMTPMailer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *SMTPMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records send durations.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(m *SMTPMailer) { m.metrics = metrics }
}

// SMTPMailer delivers each message on its own connection.
type SMTPMailer struct {
	cfg     Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time
	dialer  net.Dialer
}

// New returns an SMTPMailer for cfg.
func New(cfg Config, opts ...Option) (*SMTPMailer, error) {
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSImplicit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &SMTPMailer{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithService(m.logger, instrumentation.ServiceSMTP)
	return m, nil
}

// Send delivers msg. Errors are returned as *mailbox.MailerError.
func (m *SMTPMailer) Send(ctx context.Context, msg mailbox.Message) error {
	ctx, span := instrumentation.StartSMTPSpan(ctx)
	defer span.End()

	start := m.now()
	err := m.send(ctx, msg)
	duration := m.now().Sub(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	m.metrics.RecordSMTPSend(ctx, status, duration)

	m.logger.Debug("smtp send",
		logging.SenderHash(msg.To),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, duration),
	)

	if err != nil {
		return &mailbox.MailerError{Recipient: msg.To, Err: err}
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, msg mailbox.Message) error {
	raw, err := Compose(msg, m.now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	c, stop, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
		stop()
	}()

	if m.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := c.Mail(msg.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(msg.To, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("writing message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing message failed: %w", err)
	}

	// The server has accepted the message; a failed QUIT does not undo that.
	if err := c.Quit(); err != nil {
		m.logger.Debug("SMTP QUIT failed after message was accepted",
			logging.SenderHash(msg.To), logging.Err(err))
	}
	return nil
}

// connect dials the server and returns a client bound to ctx: the
// connection deadline follows ctx and cancellation aborts any pending I/O.
// The caller calls stop once the client is closed.
func (m *SMTPMailer) connect(ctx context.Context) (c *smtp.Client, stop func() bool, err error) {
	conn, err := m.dialer.DialContext(ctx, "tcp", m.cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("SMTP dial failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop = context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })

	switch m.cfg.TLSMode {
	case TLSImplicit:
		tlsConn := tls.Client(conn, m.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			stop()
			conn.Close()
			return nil, nil, fmt.Errorf("SMTP TLS handshake failed: %w", err)
		}
		c = smtp.NewClient(tlsConn)
	case TLSStartTLS:
		c, err = smtp.NewClientStartTLS(conn, m.tlsConfig())
		if err != nil {
			stop()
			conn.Close()
			return nil, nil, fmt.Errorf("SMTP STARTTLS failed: %w", err)
		}
	default:
		c = smtp.NewClient(conn)
	}
	return c, stop, nil
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	if m.cfg.TLSConfig != nil {
		return m.cfg.TLSConfig.Clone()
	}
	host, _, _ := net.SplitHostPort(m.cfg.Addr)
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
