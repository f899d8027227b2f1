package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/helpdesk-router/internal/pkg/config"
	"github.com/tjfontaine/helpdesk-router/internal/runtime"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "helpdeskctl",
	Short: "helpdeskctl - drive the ticket workflow from the terminal",
	Long: `helpdeskctl runs the ticket workflow engine in-process with the configured
reasoning service, state store and dispatch endpoint.

Conversation state lives in the configured store. With the default memory
store it only survives for the duration of one command; use sqlite storage
to continue a thread across "send" invocations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if it exists
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log workflow details to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newHelpdesk builds the in-process helpdesk. Logs go to stderr so stdout
// carries only conversation output.
func newHelpdesk(stderr io.Writer, opts ...runtime.Option) (*runtime.Helpdesk, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	base := []runtime.Option{runtime.WithFileConfig(configPath), runtime.WithLogger(logger)}
	return runtime.New(append(base, opts...)...)
}
