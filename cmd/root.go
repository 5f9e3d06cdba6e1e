package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autoreplier",
	Short: "Answers new Gmail threads with a fixed reply",
	Long: `autoreplier polls a Gmail inbox and answers every thread that has not
been answered yet with a fixed plain-text reply, sent over SMTP. Answered
threads are marked with a label so each thread is replied to once.

Run "autoreplier auth" once to authorize Gmail access, then "autoreplier run".`,
	SilenceUsage: true,
}

var version = "dev"

// SetVersion sets the version reported by --version and the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the CLI and exits non-zero on error. Without arguments it
// starts the engine.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "autoreplier version %s\n" .Version}}`)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd(), newAuthCmd(), newVersionCmd())
}
