package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch listing pages and append products to the raw store",
		Long: `Crawl fetches pages 1..N of the category concurrently and appends
every product card to the raw CSV store. Pages that fail are logged and
skipped; the command still succeeds with the products it could gather.

Examples:
  listings crawl --pages 20 --concurrency 8
  listings crawl --base-url "https://www.trendyol.com/cep-telefonu-x-c103498" -o data/raw.csv`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}
	addCrawlFlags(cmd)
	return cmd
}

func addCrawlFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	cmd.Flags().String("base-url", defaults.BaseURL, "Category listing URL (page 1)")
	cmd.Flags().IntP("pages", "p", defaults.Pages, "Number of listing pages to crawl")
	cmd.Flags().IntP("concurrency", "n", defaults.Concurrency, "Maximum pages fetched at once")
	cmd.Flags().DurationP("timeout", "t", defaults.Timeout, "Timeout for each page request")
	cmd.Flags().StringP("output", "o", defaults.OutputFile, "Raw store CSV path")
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
}

// applyCrawlFlags copies explicitly set flags onto cfg.
func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("base-url") {
		if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
			return err
		}
	}
	if flags.Changed("pages") {
		if cfg.Pages, err = flags.GetInt("pages"); err != nil {
			return err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("output") {
		if cfg.OutputFile, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return err
		}
	}
	return nil
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCrawlFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	_, err = crawl(cmd.OutOrStdout(), cfg, logger)
	return err
}

// crawl runs one crawl for cfg, serving metrics while it runs when
// configured, and prints the run summary to out.
func crawl(out io.Writer, cfg *config.Config, logger *slog.Logger) (*models.CrawlResult, error) {
	metrics := scraper.NewMetrics()
	stopMetrics := startMetricsServer(cfg.MetricsAddr, metrics, logger)
	defer stopMetrics()

	runner, err := pipeline.NewRunner(cfg, pipeline.WithLogger(logger), pipeline.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	result, err := runner.CrawlResult(cfg.BaseURL, cfg.Pages, cfg.Concurrency, cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("crawl failed: %w", err)
	}

	printCrawlSummary(out, result, cfg.OutputFile)
	return result, nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics, logger *slog.Logger) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	logger.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printCrawlSummary(w io.Writer, result *models.CrawlResult, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Crawl complete")

	duration := result.Duration()
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(len(result.Records)) / duration.Seconds()
	}

	fmt.Fprintf(w, "  Products:      %d\n", len(result.Records))
	fmt.Fprintf(w, "  Pages:         %d/%d\n", result.FetchedPages, result.PageCount)
	if len(result.FailedPages) > 0 {
		fmt.Fprintf(w, "  Failed pages:  %v\n", result.FailedPages)
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if result.SkippedCards > 0 {
		fmt.Fprintf(w, "  Skipped cards: %d\n", result.SkippedCards)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Items/sec:     %.2f\n", itemsPerSec)
	if len(result.Records) > 0 {
		fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	} else {
		fmt.Fprintln(w, "  Output file:   (nothing written)")
	}
	fmt.Fprintln(w, separator)
}
