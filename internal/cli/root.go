package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	port       string
}

// ExecuteContext runs the CLI. Subcommands stop when ctx is canceled.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "assessment-service",
		Short:         "Quiz grading, adaptive difficulty and leaderboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", envOr("CONFIG_PATH", "config/config.yaml"), "path to YAML config")
	flags.StringVar(&opts.port, "port", os.Getenv("PORT"), "port to listen on (overrides server.port)")

	cmd.AddCommand(newStartCmd(opts), newMigrateCmd(opts))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
