package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mainsync/core/logger"
)

type rootFlags struct {
	logLevel string
	jsonLogs bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "synctick",
		Short:         "Drive events from worker goroutines through a main-goroutine tick loop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&flags.jsonLogs, "json-logs", false, "Write logs as JSON")

	root.AddCommand(newBenchCmd(flags))
	return root
}

func (f *rootFlags) logger(cmd *cobra.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(f.logLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", f.logLevel, err)
	}

	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithAttr(logger.Component("synctick")),
	}
	if f.jsonLogs {
		opts = append(opts, logger.WithJSONFormatter())
	}
	return logger.New(opts...), nil
}
