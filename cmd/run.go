package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/autoreplier/internal/config"
	"github.com/teemow/autoreplier/internal/gmail"
	"github.com/teemow/autoreplier/internal/google"
	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/logging"
	"github.com/teemow/autoreplier/internal/mailbox"
	"github.com/teemow/autoreplier/internal/mailer"
	"github.com/teemow/autoreplier/internal/responder"
	"github.com/teemow/autoreplier/internal/server"
)

type runFlags struct {
	mailboxFlags

	replyText      string
	label          string
	query          string
	minInterval    time.Duration
	maxInterval    time.Duration
	once           bool
	dryRun         bool
	debug          bool
	metricsEnabled bool
	metricsAddr    string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the mailbox and answer new threads",
		Long: `Poll the Gmail inbox at a random interval and send the configured reply
to the sender of every thread that has not been answered yet. Answered
threads get the handled label.

Configuration comes from environment variables (optionally from a .env
file); flags override them when set.

Metrics and health probes are served on --metrics-addr:
  /metrics, /healthz, /readyz, /healthz/detailed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runEngine(cmd.Context(), cfg, f.once)
		},
	}

	f.register(cmd)
	return cmd
}

func (f *runFlags) register(cmd *cobra.Command) {
	f.mailboxFlags.register(cmd)
	cmd.Flags().StringVar(&f.replyText, "reply-text", responder.DefaultReplyText, "Body of every reply. Can also use REPLY_TEXT env var.")
	cmd.Flags().StringVar(&f.label, "label", mailbox.DefaultHandledLabel, "Label marking answered threads. Can also use HANDLED_LABEL env var.")
	cmd.Flags().StringVar(&f.query, "query", gmail.DefaultQuery, "Gmail search selecting candidate messages. Can also use LIST_QUERY env var.")
	cmd.Flags().DurationVar(&f.minInterval, "min-interval", responder.DefaultMinInterval, "Shortest pause between cycles. Can also use POLL_MIN_INTERVAL env var.")
	cmd.Flags().DurationVar(&f.maxInterval, "max-interval", responder.DefaultMaxInterval, "Longest pause between cycles. Can also use POLL_MAX_INTERVAL env var.")
	cmd.Flags().BoolVar(&f.once, "once", false, "Run a single cycle and exit")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Log the replies that would be sent without sending or labeling. Can also use DRY_RUN env var.")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&f.metricsEnabled, "metrics-enabled", true, "Enable the metrics and health server. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
}

// apply overrides cfg with the flags the user set explicitly.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("reply-text") {
		cfg.ReplyText = f.replyText
	}
	if flags.Changed("label") {
		cfg.HandledLabel = f.label
	}
	if flags.Changed("query") {
		cfg.Query = f.query
	}
	if flags.Changed("min-interval") {
		cfg.MinInterval = f.minInterval
	}
	if flags.Changed("max-interval") {
		cfg.MaxInterval = f.maxInterval
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("metrics-enabled") {
		cfg.MetricsEnabled = f.metricsEnabled
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}

func runEngine(ctx context.Context, cfg config.Config, once bool) (err error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogFormat, level, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig, err := instrumentation.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if shutdownErr := provider.Shutdown(shutdownCtx); shutdownErr != nil {
			err = errors.Join(err, fmt.Errorf("instrumentation shutdown: %w", shutdownErr))
		}
	}()
	metrics := provider.Metrics()

	oauthCfg, err := google.LoadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return err
	}
	store, closeStore, err := tokenStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer closeStore()

	auth := google.NewAuthenticator(oauthCfg, store, cfg.User,
		google.WithAuthLogger(logger),
		google.WithAuthMetrics(metrics),
	)

	if err := checkStoredCredential(ctx, auth, logger); err != nil {
		return err
	}

	mailStore := gmail.New(cfg.GmailConfig(), gmail.WithLogger(logger), gmail.WithMetrics(metrics))

	smtpMailer, err := mailer.New(cfg.SMTPConfig(), mailer.WithLogger(logger), mailer.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("invalid SMTP configuration: %w", err)
	}

	health := server.NewHealthChecker(server.ReadinessWindow(cfg.MaxInterval))

	engine, err := responder.New(auth, mailStore, smtpMailer, cfg.EngineOptions(),
		responder.WithLogger(logger),
		responder.WithMetrics(metrics),
		responder.WithAuditLogger(instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)),
		responder.WithCycleObserver(health.ObserveCycle),
	)
	if err != nil {
		return err
	}

	if once {
		report := engine.RunCycle(ctx)
		return report.Err
	}

	if cfg.MetricsEnabled {
		var metricsServer *server.MetricsServer
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Health:                  health,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := metricsServer.Listen(); err != nil {
			return err
		}
		go func() {
			if err := metricsServer.Serve(); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer func() {
			health.SetShuttingDown()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
				err = errors.Join(err, fmt.Errorf("metrics server shutdown: %w", shutdownErr))
			}
		}()
	}

	return engine.Run(ctx)
}

// checkStoredCredential fails when no token was ever stored. Any other
// credential error is logged only; the engine retries it every cycle.
func checkStoredCredential(ctx context.Context, auth responder.Authenticator, logger *slog.Logger) error {
	_, err := auth.Credential(ctx)
	if errors.Is(err, google.ErrTokenNotFound) {
		return err
	}
	if err != nil {
		logger.Warn("credential not available at startup, retrying each cycle", logging.Err(err))
	}
	return nil
}
