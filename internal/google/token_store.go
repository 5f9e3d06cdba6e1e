package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/oauth2"
)

// ErrTokenNotFound is returned by a TokenStore with no token for a mailbox.
var ErrTokenNotFound = errors.New("no OAuth token stored")

// TokenStore persists one OAuth token per mailbox.
type TokenStore interface {
	Load(ctx context.Context, mailbox string) (*oauth2.Token, error)
	Save(ctx context.Context, mailbox string, token *oauth2.Token) error
}

// FileTokenStore keeps tokens as JSON files in Dir.
type FileTokenStore struct {
	Dir string
}

// NewFileTokenStore returns a store rooted at dir, or at DefaultTokenDir
// when dir is empty.
func NewFileTokenStore(dir string) *FileTokenStore {
	if dir == "" {
		dir = DefaultTokenDir()
	}
	return &FileTokenStore{Dir: dir}
}

// Path returns the token file for mailbox.
func (s *FileTokenStore) Path(mailbox string) string {
	return filepath.Join(s.Dir, "google-"+sanitizeMailbox(mailbox)+".token")
}

// Load reads the token for mailbox.
func (s *FileTokenStore) Load(_ context.Context, mailbox string) (*oauth2.Token, error) {
	b, err := os.ReadFile(s.Path(mailbox))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return decodeToken(b)
}

// Save writes the token through a temporary file and a rename so readers
// never see a partial file.
func (s *FileTokenStore) Save(_ context.Context, mailbox string, token *oauth2.Token) error {
	b, err := encodeToken(token)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	path := s.Path(mailbox)
	tmp, err := os.CreateTemp(s.Dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func encodeToken(token *oauth2.Token) ([]byte, error) {
	if token == nil {
		return nil, errors.New("refusing to store a nil token")
	}
	b, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	return b, nil
}

func decodeToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("stored token is empty")
	}
	return &tok, nil
}

// sanitizeMailbox maps an address to a file-name-safe string.
func sanitizeMailbox(mailbox string) string {
	mailbox = strings.ToLower(strings.TrimSpace(mailbox))
	if mailbox == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_', r == '@', r == '+':
			return r
		default:
			return '_'
		}
	}, mailbox)
}

// DefaultTokenDir returns the per-user cache directory for tokens.
func DefaultTokenDir() string {
	return filepath.Join(userCacheDir(), "autoreplier")
}

func userCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(os.Getenv("HOME"), "Library", "Caches")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}
