package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func exchangeServer(t *testing.T, wantCode string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != wantCode {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func consentConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: DefaultOAuthScopes,
	}
}

func TestConsent_LoopbackRedirect(t *testing.T) {
	srv := exchangeServer(t, "loopback-code")

	var authURL string
	c := &Consent{
		Config:     consentConfig(srv.URL),
		ListenAddr: "127.0.0.1:0",
		OnAuthURL: func(u string) {
			authURL = u
			parsed, err := url.Parse(u)
			if err != nil {
				return
			}
			redirect := parsed.Query().Get("redirect_uri")
			go func() {
				resp, err := http.Get(redirect + "?code=loopback-code")
				if err == nil {
					resp.Body.Close()
				}
			}()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh", tok.RefreshToken)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.True(t, strings.HasPrefix(q.Get("redirect_uri"), "http://127.0.0.1:"))
}

func TestConsent_PastedRedirectURL(t *testing.T) {
	srv := exchangeServer(t, "pasted-code")

	c := &Consent{
		Config:    consentConfig(srv.URL),
		In:        strings.NewReader("\nhttp://127.0.0.1:1/?state=x&code=pasted-code\n"),
		OnAuthURL: func(string) {},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
}

func TestConsent_ContextCancelled(t *testing.T) {
	c := &Consent{Config: consentConfig("http://127.0.0.1:1"), OnAuthURL: func(string) {}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsent_RequiresConfig(t *testing.T) {
	_, err := (&Consent{}).Run(context.Background())
	assert.Error(t, err)
}

func TestParseAuthCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare code", input: "  4/0Abc-def  ", want: "4/0Abc-def"},
		{name: "redirect url", input: "http://127.0.0.1:8080/?state=s&code=abc123&scope=x", want: "abc123"},
		{name: "https url", input: "https://localhost/callback?code=xyz", want: "xyz"},
		{name: "url without code", input: "http://127.0.0.1/?error=access_denied", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuthCode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
