// Command vibecheck serves and maintains the VibeCheck restaurant search.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kristinmlloyd/VibeCheck/internal/api/handlers"
	"github.com/kristinmlloyd/VibeCheck/internal/config"
	"github.com/kristinmlloyd/VibeCheck/internal/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vibecheck",
		Short:         "Restaurant search by vibe",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(os.Stderr, cfg.Server.LogFormat, cfg.Server.LogLevel)
			slog.SetDefault(a.logger)
			handlers.Version = version
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newBuildIndexCmd(a),
		newSearchCmd(a),
		newIngestCmd(a),
		newVibesCmd(a),
	)
	return root
}
