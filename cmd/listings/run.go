package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl, then clean the raw store",
		Long: `Run performs a crawl and then cleans the raw store it appended to.
It accepts the flags of both crawl and clean.

Example:
  listings run --pages 5 --report report.md`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}
	addCrawlFlags(cmd)
	addCleanFlags(cmd)
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCrawlFlags(cmd, cfg); err != nil {
		return err
	}
	input, outputs, err := applyCleanFlags(cmd, cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	result, err := crawl(cmd.OutOrStdout(), cfg, logger)
	if err != nil {
		return err
	}
	if len(result.Records) == 0 && input == cfg.OutputFile {
		logger.Warn("crawl produced no products; cleaning the existing raw store if any", slog.String("path", input))
	}

	_, err = clean(cmd.OutOrStdout(), cfg, input, outputs, logger)
	return err
}
