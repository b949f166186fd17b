package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	debug     bool
	configDir string
	dbPath    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "staffeval",
		Short: "staffeval - evaluate candidate models for staff roles",
		Long: `staffeval runs the candidate evaluation pipeline.

A session is created from a role briefing, tested with generated tasks,
optionally deep-analysed per step, scored by an arbiter panel and finally
confirmed by a human decision.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "Directory to start the .staffeval.yaml lookup from")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides storage.path)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if opts.debug {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newInterviewCommand(opts))
	cmd.AddCommand(newDeepAnalysisCommand(opts))
	cmd.AddCommand(newDecideCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
