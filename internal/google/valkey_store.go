package google

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/oauth2"
)

// DefaultValkeyKeyPrefix prefixes every key written by ValkeyTokenStore.
const DefaultValkeyKeyPrefix = "autoreplier:"

// ValkeyConfig holds the connection settings for ValkeyTokenStore.
type ValkeyConfig struct {
	// URL is the server address, e.g. "valkey.namespace.svc:6379".
	URL        string
	Password   string
	DB         int
	TLSEnabled bool
	KeyPrefix  string
}

// ValkeyTokenStore keeps tokens in Valkey under <prefix>token:<mailbox>.
type ValkeyTokenStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyTokenStore connects to Valkey.
func NewValkeyTokenStore(cfg ValkeyConfig) (*ValkeyTokenStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("valkey URL is required")
	}

	opt := valkey.ClientOption{
		InitAddress: []string{cfg.URL},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}
	if cfg.TLSEnabled {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("connect to valkey at %s: %w", cfg.URL, err)
	}
	return newValkeyTokenStore(client, cfg.KeyPrefix), nil
}

func newValkeyTokenStore(client valkey.Client, prefix string) *ValkeyTokenStore {
	if prefix == "" {
		prefix = DefaultValkeyKeyPrefix
	}
	return &ValkeyTokenStore{client: client, prefix: prefix}
}

// Key returns the Valkey key for mailbox.
func (s *ValkeyTokenStore) Key(mailbox string) string {
	return s.prefix + "token:" + sanitizeMailbox(mailbox)
}

// Load reads the token for mailbox.
func (s *ValkeyTokenStore) Load(ctx context.Context, mailbox string) (*oauth2.Token, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(s.Key(mailbox)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get token: %w", err)
	}
	return decodeToken(b)
}

// Save writes the token for mailbox with no expiry.
func (s *ValkeyTokenStore) Save(ctx context.Context, mailbox string, token *oauth2.Token) error {
	b, err := encodeToken(token)
	if err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(s.Key(mailbox)).Value(valkey.BinaryString(b)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set token: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *ValkeyTokenStore) Close() {
	s.client.Close()
}
