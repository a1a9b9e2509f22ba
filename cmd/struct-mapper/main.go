// Package main provides the struct-mapper CLI.
//
// struct-mapper works with rule files for the demo store and warehouse
// models:
//   - check validates a rule file and prints stubs for missing transforms
//   - plan prints the compiled plans of the demo pairs
//   - map maps the sample customer and dumps the result
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cli struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "struct-mapper",
		Short:         "Inspect object mappings and their rule files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(c.verbose)
			if err != nil {
				return err
			}

			c.logger = logger

			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = c.logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log plan compilation and caching")

	cmd.AddCommand(
		newCheckCommand(c),
		newPlanCommand(c),
		newMapCommand(c),
		newNormalizeCommand(c),
	)

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true

	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "struct-mapper:", err)
		os.Exit(1)
	}
}
