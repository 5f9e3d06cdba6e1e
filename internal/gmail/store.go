package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// Defaults for zero-valued Config fields.
const (
	DefaultQuery       = "in:inbox"
	DefaultMaxResults  = 100
	DefaultAPIRate     = 5
	DefaultCallTimeout = 30 * time.Second

	// maxPageSize is the largest page messages.list accepts.
	maxPageSize = 500
)

// Config tunes the store.
type Config struct {
	// Query is the Gmail search expression selecting candidates.
	Query string

	// ExcludeLabel, when set, is appended to Query as -label:<name> so
	// messages already carrying it are not listed at all.
	ExcludeLabel string

	// MaxResults caps the number of messages listed per call.
	MaxResults int64

	// APIRate is the sustained request rate in calls per second.
	// Negative disables throttling.
	APIRate float64

	// CallTimeout bounds each API request.
	CallTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Query == "" {
		c.Query = DefaultQuery
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.APIRate == 0 {
		c.APIRate = DefaultAPIRate
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
}

// Option configures a Store.
type Option func(*Store)

// WithEndpoint points the client at a different API root, e.g. a test server.
func WithEndpoint(endpoint string) Option {
	return func(s *Store) { s.endpoint = endpoint }
}

// WithHTTPClient sets the client whose transport carries the authorized
// requests. The default is http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.base = c
		}
	}
}

// WithMetrics records Google API metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is a Gmail-backed mail store. It is safe for concurrent use.
type Store struct {
	cfg      Config
	limiter  *rate.Limiter
	endpoint string
	base     *http.Client
	metrics  *instrumentation.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	svc      *gmail.Service
	svcToken string
}

// New creates a Store.
func New(cfg Config, opts ...Option) *Store {
	cfg.applyDefaults()

	limit := rate.Limit(cfg.APIRate)
	burst := max(1, int(cfg.APIRate))
	if cfg.APIRate < 0 {
		limit = rate.Inf
	}

	s := &Store{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		base:    http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// query returns the effective search expression.
func (s *Store) query() string {
	if s.cfg.ExcludeLabel == "" {
		return s.cfg.Query
	}
	// Gmail search spells spaces in label names as hyphens.
	name := strings.ReplaceAll(s.cfg.ExcludeLabel, " ", "-")
	return s.cfg.Query + " -label:" + name
}

// service returns a Gmail service authorized with cred, reusing the previous
// one while the access token is unchanged.
func (s *Store) service(ctx context.Context, cred mailbox.Credential) (*gmail.Service, error) {
	token := cred.Token()
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("credential carries no access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.svc != nil && s.svcToken == token.AccessToken {
		return s.svc, nil
	}

	client := &http.Client{
		Timeout: s.base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   s.base.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	s.svc = svc
	s.svcToken = token.AccessToken
	return svc, nil
}

// call throttles, traces and times fn.
func (s *Store) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, duration)
	s.logger.Debug("gmail call",
		slog.String("operation", operation),
		slog.String("status", status),
		slog.Duration("duration", duration),
	)

	return err
}

// userID maps the mailbox to the API's userId path parameter.
func userID(mb string) string {
	if mb == "" {
		return "me"
	}
	return mb
}

// statusCode returns the HTTP status of a Google API error, or 0.
func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
