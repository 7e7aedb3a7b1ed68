package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/export"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/spf13/cobra"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the raw store into a deduplicated dataset",
		Long: `Clean loads the raw CSV store, coerces ratings and prices to numbers,
drops rows without brand, name or price, and removes duplicate rows.
The dataset can be exported as JSON lines, a SQLite table and a Markdown
summary report.

Examples:
  listings clean --input data/raw_data.csv
  listings clean --jsonl data/products.jsonl --sqlite data/listings.db --report report.md`,
		Args: cobra.NoArgs,
		RunE: runCleanCmd,
	}
	addCleanFlags(cmd)
	return cmd
}

type cleanOutputs struct {
	jsonl  string
	sqlite string
	report string
}

func addCleanFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	cmd.Flags().StringP("input", "i", "", "Raw store CSV to clean (default: the crawl output file)")
	cmd.Flags().String("jsonl", "", "Write the cleaned dataset as JSON lines to this path")
	cmd.Flags().String("sqlite", "", "Store the cleaned dataset in this SQLite database")
	cmd.Flags().String("report", "", "Write a Markdown summary report to this path")
	cmd.Flags().Int("min-ratings", defaults.MinRatingCount, "Minimum rating count for the brand analysis")
}

func applyCleanFlags(cmd *cobra.Command, cfg *config.Config) (string, cleanOutputs, error) {
	flags := cmd.Flags()
	var outputs cleanOutputs

	input, err := flags.GetString("input")
	if err != nil {
		return "", outputs, err
	}
	if input == "" {
		input = cfg.OutputFile
	}
	if flags.Changed("min-ratings") {
		if cfg.MinRatingCount, err = flags.GetInt("min-ratings"); err != nil {
			return "", outputs, err
		}
	}
	if outputs.jsonl, err = flags.GetString("jsonl"); err != nil {
		return "", outputs, err
	}
	if outputs.sqlite, err = flags.GetString("sqlite"); err != nil {
		return "", outputs, err
	}
	if outputs.report, err = flags.GetString("report"); err != nil {
		return "", outputs, err
	}
	return input, outputs, nil
}

func runCleanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
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

	_, err = clean(cmd.OutOrStdout(), cfg, input, outputs, logger)
	return err
}

func clean(out io.Writer, cfg *config.Config, input string, outputs cleanOutputs, logger *slog.Logger) (*models.Dataset, error) {
	runner, err := pipeline.NewRunner(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ds, err := runner.Clean(input)
	if err != nil {
		return nil, err
	}

	if err := exportDataset(ds, cfg, outputs); err != nil {
		return nil, err
	}

	printCleanSummary(out, ds, outputs)
	return ds, nil
}

func exportDataset(ds *models.Dataset, cfg *config.Config, outputs cleanOutputs) error {
	var writers []export.Writer
	closeAll := func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	if outputs.jsonl != "" {
		w, err := export.NewJSONLWriter(outputs.jsonl)
		if err != nil {
			closeAll()
			return err
		}
		writers = append(writers, w)
	}
	if outputs.sqlite != "" {
		w, err := export.NewSQLiteWriter(outputs.sqlite)
		if err != nil {
			closeAll()
			return err
		}
		writers = append(writers, w)
	}
	if outputs.report != "" {
		w, err := export.NewMarkdownReportFile(outputs.report, cfg.MinRatingCount)
		if err != nil {
			closeAll()
			return err
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		return nil
	}

	mw := export.NewMultiWriter(writers...)
	if err := mw.Write(ds); err != nil {
		_ = mw.Close()
		return fmt.Errorf("export dataset: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close exports: %w", err)
	}
	return nil
}

func printCleanSummary(w io.Writer, ds *models.Dataset, outputs cleanOutputs) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Clean complete")
	fmt.Fprintf(w, "  Rows loaded:   %d\n", ds.Stats.Loaded)
	fmt.Fprintf(w, "  Dropped:       %d\n", ds.Stats.MissingCritical)
	fmt.Fprintf(w, "  Duplicates:    %d\n", ds.Stats.Duplicates)
	fmt.Fprintf(w, "  Products:      %d\n", ds.Len())

	if len(ds.Stats.Coerced) > 0 {
		fields := make([]string, 0, len(ds.Stats.Coerced))
		for field := range ds.Stats.Coerced {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(w, "  Defaulted %-13s %d\n", field+":", ds.Stats.Coerced[field])
		}
	}
	for _, path := range []string{outputs.jsonl, outputs.sqlite, outputs.report} {
		if path != "" {
			fmt.Fprintf(w, "  Exported:      %s\n", path)
		}
	}
	fmt.Fprintln(w, separator)
}
