package google

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Consent runs the interactive authorization code flow. It listens for the
// redirect on a loopback port and, at the same time, accepts the code or the
// full redirect URL pasted into In; whichever arrives first wins.
type Consent struct {
	Config *oauth2.Config
	In     io.Reader
	Out    io.Writer

	// ListenAddr is the loopback address for the redirect listener.
	ListenAddr string

	// OnAuthURL receives the consent URL. The default prints it to Out.
	OnAuthURL func(string)
}

// Run performs the flow and returns the exchanged token.
func (c *Consent) Run(ctx context.Context) (*oauth2.Token, error) {
	if c.Config == nil {
		return nil, errors.New("oauth config is required")
	}
	conf := *c.Config

	codes := make(chan string, 2)

	addr := c.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		conf.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
		srv := &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           redirectHandler(codes),
		}
		go func() { _ = srv.Serve(ln) }()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	authURL := conf.AuthCodeURL("autoreplier", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if c.OnAuthURL != nil {
		c.OnAuthURL(authURL)
	} else if c.Out != nil {
		fmt.Fprintln(c.Out, "Open this URL in your browser and grant access:")
		fmt.Fprintln(c.Out, authURL)
		fmt.Fprintln(c.Out, "")
		fmt.Fprintln(c.Out, "Waiting for the redirect. You can also paste the code or the full redirect URL here.")
	}

	pasteErr := make(chan error, 1)
	if c.In != nil {
		go readPasted(c.In, codes, pasteErr)
	}

	var code string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case code = <-codes:
	case err := <-pasteErr:
		if ln == nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case code = <-codes:
		}
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

func redirectHandler(codes chan<- string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "Authorization failed: "+msg, http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codes <- code:
		default:
		}
	})
}

func readPasted(in io.Reader, codes chan<- string, errs chan<- error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	for sc.Scan() {
		code, err := ParseAuthCode(sc.Text())
		if err != nil {
			continue
		}
		codes <- code
		return
	}
	if err := sc.Err(); err != nil {
		errs <- fmt.Errorf("read auth code: %w", err)
		return
	}
	errs <- errors.New("no authorization code entered")
}

// ParseAuthCode accepts either a bare authorization code or a redirect URL
// carrying a code parameter.
func ParseAuthCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}
