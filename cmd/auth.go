package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/autoreplier/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		mf         mailboxFlags
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the OAuth token",
		Long: `Run the OAuth consent flow for the configured mailbox and store the
resulting token in the token store.

Open the printed URL and grant access. The redirect is received on a local
port; if the browser runs on another machine, paste the code or the full
redirect URL into the terminal instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mf.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateAuth(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runAuth(ctx, cmd, cfg.User, cfg.CredentialsFile, listenAddr, func() (google.TokenStore, func(), error) {
				return tokenStore(cfg)
			})
		},
	}

	mf.register(cmd)
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:0", "Loopback address that receives the OAuth redirect")

	return cmd
}

func runAuth(ctx context.Context, cmd *cobra.Command, user, credentialsFile, listenAddr string, openStore func() (google.TokenStore, func(), error)) error {
	oauthCfg, err := google.LoadOAuthConfig(credentialsFile)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer closeStore()

	consent := &google.Consent{
		Config:     oauthCfg,
		In:         cmd.InOrStdin(),
		Out:        cmd.OutOrStdout(),
		ListenAddr: listenAddr,
	}
	tok, err := consent.Run(ctx)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if tok.RefreshToken == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: no refresh token was issued; revoke the app's access and run auth again")
	}

	if err := store.Save(ctx, user, tok); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s.\n", user)
	return nil
}
