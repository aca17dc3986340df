package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kcse",
		Short:         "Extract KCSE results from screenshots into spreadsheet templates",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newProcessCommand())
	root.AddCommand(newRunsCommand())
	return root
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
