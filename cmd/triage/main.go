// Package main is the entry point of the bug triage service and its CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/easeaico/bug-triage-agent/internal/app"
	"github.com/easeaico/bug-triage-agent/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Automated bug triage with a fix memory",
	Long: `triage watches a Jira project for new bugs, proposes a patch for each
one and opens a review with it. Fixes are remembered and reused verbatim
for similar bugs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("CONFIG_FILE"), "config file path (YAML or JSON)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rememberCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}

// setup loads the configuration and builds the shared components.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(ctx, cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
