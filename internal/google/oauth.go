package google

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// LoadOAuthConfig reads a client secrets file as downloaded from the Google
// Cloud console and returns its OAuth2 configuration.
func LoadOAuthConfig(path string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", path, err)
	}
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config %s: %w", path, err)
	}
	return cfg, nil
}
