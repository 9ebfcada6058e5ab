package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solvirx/tokenwatch/bot"
	"github.com/solvirx/tokenwatch/core"
	"github.com/solvirx/tokenwatch/logger/zerolog"
)

// Command line flags
var (
	logLevel string
	logJSON  bool
	noColor  bool
	database string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "tokenwatch",
		Short:   "Telegram bot that tracks new token listings against user filters",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
		RunE:  run,
	}

	runCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (trace, debug, info, warn, error)")
	runCmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	runCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored log output")
	runCmd.Flags().StringVarP(&database, "database", "d", "", "Database file (overrides TOKENWATCH_DB)")

	return runCmd
}

func run(cmd *cobra.Command, _ []string) error {
	log, err := zerolog.New(logLevel, time.DateTime, !noColor, logJSON)
	if err != nil {
		return err
	}

	settings, err := core.LoadSettings()
	if err != nil {
		return err
	}
	if database != "" {
		settings.DatabaseFile = database
	}

	app, err := bot.NewBot(settings, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}
