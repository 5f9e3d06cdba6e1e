package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/logging"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// DefaultRefreshMargin is how long before expiry a token is refreshed. It
// covers the length of one cycle, which reuses a single credential.
const DefaultRefreshMargin = 5 * time.Minute

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthLogger sets the logger.
func WithAuthLogger(logger *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthMetrics records token refresh outcomes.
func WithAuthMetrics(m *instrumentation.Metrics) AuthenticatorOption {
	return func(a *Authenticator) { a.metrics = m }
}

// WithRefreshMargin sets how long before expiry a token is refreshed.
func WithRefreshMargin(d time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		if d >= 0 {
			a.margin = d
		}
	}
}

// Authenticator hands out valid credentials for one mailbox. It loads the
// stored token on first use, refreshes it when it expires and saves every
// refreshed token back to the store. It is safe for concurrent use.
type Authenticator struct {
	config  *oauth2.Config
	store   TokenStore
	mailbox string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	margin  time.Duration
	now     func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// NewAuthenticator creates an Authenticator for mb.
func NewAuthenticator(config *oauth2.Config, store TokenStore, mb string, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		config:  config,
		store:   store,
		mailbox: mb,
		logger:  slog.Default(),
		margin:  DefaultRefreshMargin,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Credential returns a credential with a valid access token. Failures are
// returned as *mailbox.AuthError.
func (a *Authenticator) Credential(ctx context.Context) (mailbox.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		tok, err := a.store.Load(ctx, a.mailbox)
		if errors.Is(err, ErrTokenNotFound) {
			return mailbox.Credential{}, a.authError(fmt.Errorf("%w; run \"autoreplier auth\" first", err))
		}
		if err != nil {
			return mailbox.Credential{}, a.authError(err)
		}
		a.token = tok
	}

	if !a.expiresSoon() {
		return mailbox.NewCredential(a.token), nil
	}

	tok, err := a.refresh(ctx)
	if err != nil {
		if a.token.Valid() {
			a.logger.Warn("early token refresh failed, using current token",
				logging.Mailbox(a.mailbox), slog.Time("expiry", a.token.Expiry), logging.Err(err))
			return mailbox.NewCredential(a.token), nil
		}
		return mailbox.Credential{}, a.authError(err)
	}
	return mailbox.NewCredential(tok), nil
}

// expiresSoon reports whether the token is expired or expires within the
// refresh margin. A token without expiry never does.
func (a *Authenticator) expiresSoon() bool {
	if !a.token.Valid() {
		return true
	}
	if a.token.Expiry.IsZero() {
		return false
	}
	return !a.now().Add(a.margin).Before(a.token.Expiry)
}

// refresh exchanges the refresh token. The caller holds a.mu.
func (a *Authenticator) refresh(ctx context.Context) (*oauth2.Token, error) {
	if a.token.RefreshToken == "" {
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, errors.New("access token expired and no refresh token is stored")
	}

	// Only the refresh token is passed on, so the source exchanges it even
	// while the current access token is still valid.
	tok, err := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: a.token.RefreshToken}).Token()
	if err != nil {
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	a.token = tok
	a.logger.Debug("oauth token refreshed",
		logging.Mailbox(a.mailbox),
		slog.Time("expiry", tok.Expiry),
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)),
	)

	if err := a.store.Save(ctx, a.mailbox, tok); err != nil {
		// The in-memory token still works; the next refresh retries the save.
		a.logger.Warn("failed to persist refreshed token", logging.Mailbox(a.mailbox), logging.Err(err))
	}
	return tok, nil
}

func (a *Authenticator) authError(err error) error {
	return &mailbox.AuthError{Mailbox: a.mailbox, Err: err}
}
