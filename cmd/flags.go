package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/autoreplier/internal/config"
	"github.com/teemow/autoreplier/internal/google"
)

// mailboxFlags are shared by every command that touches the mailbox.
type mailboxFlags struct {
	envFile         string
	user            string
	credentialsFile string
	tokenStore      string
	tokenDir        string
}

func (f *mailboxFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "File with environment variables to load. A missing file is ignored.")
	cmd.Flags().StringVar(&f.user, "user", "", "Gmail address to answer from. Can also use GMAIL_USER env var.")
	cmd.Flags().StringVar(&f.credentialsFile, "credentials", config.DefaultCredentialsFile, "OAuth client secrets file from the Google Cloud console. Can also use GOOGLE_CREDENTIALS_FILE env var.")
	cmd.Flags().StringVar(&f.tokenStore, "token-store", config.TokenStoreFile, "OAuth token storage: file or valkey. Can also use TOKEN_STORE env var.")
	cmd.Flags().StringVar(&f.tokenDir, "token-dir", "", "Directory for file token storage (default: user cache dir). Can also use TOKEN_DIR env var.")
}

// load reads the environment and applies the flags the user set explicitly.
func (f *mailboxFlags) load(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("user") {
		cfg.User = f.user
	}
	if flags.Changed("credentials") {
		cfg.CredentialsFile = f.credentialsFile
	}
	if flags.Changed("token-store") {
		cfg.TokenStore = f.tokenStore
	}
	if flags.Changed("token-dir") {
		cfg.TokenDir = f.tokenDir
	}
	return cfg, nil
}

// tokenStore opens the configured backend and returns a func releasing it.
func tokenStore(cfg config.Config) (google.TokenStore, func(), error) {
	switch cfg.TokenStore {
	case config.TokenStoreValkey:
		vs, err := google.NewValkeyTokenStore(cfg.Valkey)
		if err != nil {
			return nil, nil, err
		}
		return vs, vs.Close, nil
	default:
		return google.NewFileTokenStore(cfg.TokenDir), func() {}, nil
	}
}
