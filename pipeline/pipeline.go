// Package pipeline wires crawler, raw store and cleaner into the two
// operations the rest of the system calls: Crawl and Clean.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aluiziolira/go-scrape-listings/cleaner"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
	"github.com/aluiziolira/go-scrape-listings/scraper"
	"github.com/aluiziolira/go-scrape-listings/store"
)

// ErrNoOutputPath is returned by Crawl when no raw store path is given.
var ErrNoOutputPath = errors.New("pipeline: output path is empty")

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records crawl metrics on m.
func WithMetrics(m *scraper.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f scraper.PageFetcher) Option {
	return func(r *Runner) {
		r.fetcher = f
	}
}

// WithTransport sets the HTTP transport of the default fetcher.
func WithTransport(transport http.RoundTripper) Option {
	return func(r *Runner) {
		r.transport = transport
	}
}

// Runner composes the crawl and clean stages from one configuration.
type Runner struct {
	cfg       *config.Config
	fetcher   scraper.PageFetcher
	parser    *parser.Parser
	store     *store.RawStore
	cleaner   *cleaner.Cleaner
	transport http.RoundTripper
	metrics   *scraper.Metrics
	logger    *slog.Logger
}

// NewRunner builds a Runner. A nil cfg means config.DefaultConfig().
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r := &Runner{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}

	r.parser = parser.New(cfg.Selectors, parser.WithLogger(r.logger))
	if r.fetcher == nil {
		fetcherOpts := []scraper.Option{scraper.WithLogger(r.logger), scraper.WithMetrics(r.metrics)}
		if r.transport != nil {
			fetcherOpts = append(fetcherOpts, scraper.WithTransport(r.transport))
		}
		r.fetcher = scraper.NewFetcher(cfg, fetcherOpts...)
	}
	r.store = store.New(store.WithLogger(r.logger))

	c, err := cleaner.New(
		cleaner.WithLogger(r.logger),
		cleaner.WithPriceCacheSize(cfg.PriceCacheSize),
	)
	if err != nil {
		return nil, err
	}
	r.cleaner = c
	return r, nil
}

// Crawl scrapes pages 1..pageCount of baseURL and appends the records to
// the raw store at outputPath. It returns the number of records written.
// Page failures only reduce the count; an empty crawl writes nothing.
func (r *Runner) Crawl(baseURL string, pageCount, concurrency int, outputPath string) (int, error) {
	result, err := r.CrawlResult(baseURL, pageCount, concurrency, outputPath)
	if err != nil {
		return 0, err
	}
	return len(result.Records), nil
}

// CrawlResult is Crawl returning the full crawl result.
func (r *Runner) CrawlResult(baseURL string, pageCount, concurrency int, outputPath string) (*models.CrawlResult, error) {
	if outputPath == "" {
		return nil, ErrNoOutputPath
	}

	crawler := scraper.NewCrawler(r.fetcher, r.parser,
		scraper.WithLogger(r.logger),
		scraper.WithMetrics(r.metrics),
		scraper.WithPageParam(r.cfg.PageParam),
	)

	r.logger.Info("starting crawl",
		slog.String("base_url", baseURL),
		slog.Int("pages", pageCount),
		slog.Int("concurrency", concurrency),
	)
	result, err := crawler.Run(baseURL, pageCount, concurrency)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}

	if len(result.Records) == 0 {
		r.logger.Warn("no products scraped; raw store left untouched", slog.String("path", outputPath))
		return result, nil
	}
	if err := r.store.Append(result.Records, outputPath); err != nil {
		return nil, fmt.Errorf("persist raw records: %w", err)
	}

	r.logger.Info("crawl completed",
		slog.Int("records", len(result.Records)),
		slog.Int("failed_pages", len(result.FailedPages)),
		slog.Duration("duration", result.Duration()),
	)
	return result, nil
}

// Clean loads the raw store at inputPath and returns the cleaned dataset.
// The error is a *cleaner.LoadError.
func (r *Runner) Clean(inputPath string) (*models.Dataset, error) {
	return r.cleaner.Clean(inputPath)
}

// Crawl runs a crawl with the default configuration.
func Crawl(baseURL string, pageCount, concurrency int, outputPath string) (int, error) {
	r, err := NewRunner(nil)
	if err != nil {
		return 0, err
	}
	return r.Crawl(baseURL, pageCount, concurrency, outputPath)
}

// Clean cleans a raw store with the default configuration.
func Clean(inputPath string) (*models.Dataset, error) {
	r, err := NewRunner(nil)
	if err != nil {
		return nil, err
	}
	return r.Clean(inputPath)
}
