package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/autoreplier/internal/logging"
	"github.com/teemow/autoreplier/internal/mailbox"
)

type memoryTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]*oauth2.Token
	saves   int
	saveErr error
	loadErr error
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: map[string]*oauth2.Token{}}
}

func (s *memoryTokenStore) Load(_ context.Context, mb string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	tok, ok := s.tokens[mb]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *memoryTokenStore) Save(_ context.Context, mb string, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *tok
	s.tokens[mb] = &cp
	return nil
}

func tokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestAuthenticator_ReturnsStoredValidToken(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	store := newMemoryTokenStore()
	store.tokens["me@example.com"] = &oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}

	a := NewAuthenticator(testOAuthConfig(srv.URL), store, "me@example.com", WithAuthLogger(logging.Discard()))
	cred, err := a.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", cred.Token().AccessToken)
	assert.True(t, cred.Valid())
	assert.Zero(t, calls.Load())
}

func TestAuthenticator_RefreshesAndPersists(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	store := newMemoryTokenStore()
	store.tokens["me@example.com"] = &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Minute),
	}

	a := NewAuthenticator(testOAuthConfig(srv.URL), store, "me@example.com", WithAuthLogger(logging.Discard()))

	cred, err := a.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.Token().AccessToken)
	assert.Equal(t, int32(1), calls.Load())

	saved, err := store.Load(context.Background(), "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, "refresh", saved.RefreshToken, "refresh token is carried over")

	// A second call uses the cached token.
	_, err = a.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAuthenticator_RefreshesBeforeExpiry(t *testing.T) {
	tests := []struct {
		name         string
		refreshToken string
		margin       time.Duration
		wantToken    string
		wantCalls    int32
	}{
		{name: "inside default margin", refreshToken: "refresh", margin: DefaultRefreshMargin, wantToken: "fresh", wantCalls: 1},
		{name: "outside margin", refreshToken: "refresh", margin: 10 * time.Second, wantToken: "current", wantCalls: 0},
		{name: "early refresh rejected", refreshToken: "revoked", margin: DefaultRefreshMargin, wantToken: "current", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := tokenServer(t, &calls)

			store := newMemoryTokenStore()
			store.tokens["me@example.com"] = &oauth2.Token{
				AccessToken:  "current",
				RefreshToken: tt.refreshToken,
				Expiry:       time.Now().Add(30 * time.Second),
			}

			a := NewAuthenticator(testOAuthConfig(srv.URL), store, "me@example.com",
				WithAuthLogger(logging.Discard()),
				WithRefreshMargin(tt.margin),
			)
			cred, err := a.Credential(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, cred.Token().AccessToken)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestAuthenticator_SaveFailureStillReturnsToken(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	store := newMemoryTokenStore()
	store.tokens["me@example.com"] = &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Minute)}
	store.saveErr = errors.New("disk full")

	a := NewAuthenticator(testOAuthConfig(srv.URL), store, "me@example.com", WithAuthLogger(logging.Discard()))
	cred, err := a.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.Token().AccessToken)
	assert.Equal(t, 1, store.saves)
}

func TestAuthenticator_Errors(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	tests := []struct {
		name  string
		setup func(*memoryTokenStore)
	}{
		{
			name:  "no stored token",
			setup: func(*memoryTokenStore) {},
		},
		{
			name: "store failure",
			setup: func(s *memoryTokenStore) {
				s.loadErr = errors.New("connection refused")
			},
		},
		{
			name: "expired without refresh token",
			setup: func(s *memoryTokenStore) {
				s.tokens["me@example.com"] = &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Minute)}
			},
		},
		{
			name: "refresh rejected",
			setup: func(s *memoryTokenStore) {
				s.tokens["me@example.com"] = &oauth2.Token{AccessToken: "stale", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Minute)}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryTokenStore()
			tt.setup(store)

			a := NewAuthenticator(testOAuthConfig(srv.URL), store, "me@example.com", WithAuthLogger(logging.Discard()))
			_, err := a.Credential(context.Background())
			require.Error(t, err)

			var authErr *mailbox.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, "me@example.com", authErr.Mailbox)
		})
	}
}

func TestAuthenticator_MissingTokenHint(t *testing.T) {
	a := NewAuthenticator(testOAuthConfig("http://127.0.0.1:1"), newMemoryTokenStore(), "me@example.com", WithAuthLogger(logging.Discard()))
	_, err := a.Credential(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Contains(t, err.Error(), "autoreplier auth")
}
