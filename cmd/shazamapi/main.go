package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Numenorean/ShazamAPI/internal/config"
	"github.com/Numenorean/ShazamAPI/pkg/logger"
)

var (
	cfg       *config.Config
	flagDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "shazamapi",
	Short:         "Identify recorded music through the Shazam recognition service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		return logger.Init(flagDebug || cfg.Debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
