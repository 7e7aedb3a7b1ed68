package scraper

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Run is given a non-positive concurrency.
const DefaultConcurrency = 5

// DefaultPageParam is the query parameter carrying the page index.
const DefaultPageParam = "pi"

// PageFetcher retrieves one page body.
type PageFetcher interface {
	Fetch(url string) ([]byte, error)
}

// PageParser extracts product records from one page body.
type PageParser interface {
	ParseWithStats(content []byte) (parser.Result, error)
}

// Option configures a Fetcher or Crawler.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	metrics   *Metrics
	pageParam string
	transport http.RoundTripper
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors to update.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithPageParam overrides the page index query parameter.
func WithPageParam(param string) Option {
	return func(o *options) {
		if param != "" {
			o.pageParam = param
		}
	}
}

// WithTransport replaces the fetcher's HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

func newOptions(opts []Option) options {
	o := options{pageParam: DefaultPageParam}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Crawler fans page tasks out to a bounded pool of fetch+parse workers.
type Crawler struct {
	fetcher   PageFetcher
	parser    PageParser
	pageParam string
	metrics   *Metrics
	logger    *slog.Logger
}

// NewCrawler composes a crawler from a fetcher and a parser.
func NewCrawler(fetcher PageFetcher, parser PageParser, opts ...Option) *Crawler {
	o := newOptions(opts)
	return &Crawler{
		fetcher:   fetcher,
		parser:    parser,
		pageParam: o.pageParam,
		metrics:   o.metrics,
		logger:    o.logger,
	}
}

// PageURL returns the listing URL for page. Page 1 is the base URL as given;
// later pages set the page index query parameter.
func PageURL(baseURL, param string, page int) (string, error) {
	if page <= 1 {
		return baseURL, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildTasks returns one task per page in [1, pageCount].
func BuildTasks(baseURL, param string, pageCount int) ([]models.PageTask, error) {
	tasks := make([]models.PageTask, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		pageURL, err := PageURL(baseURL, param, page)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, models.PageTask{PageNumber: page, URL: pageURL})
	}
	return tasks, nil
}

type pageOutcome struct {
	task    models.PageTask
	records []models.RawProduct
	skipped int
	stage   string
	err     error
}

// Run fetches and parses pages 1..pageCount with at most concurrency
// workers in flight. Failed pages contribute no records and do not fail the
// run; Run returns after every page has finished. Record order is
// unspecified.
func (c *Crawler) Run(baseURL string, pageCount, concurrency int) (*models.CrawlResult, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("page count must be positive, got %d", pageCount)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	tasks, err := BuildTasks(baseURL, c.pageParam, pageCount)
	if err != nil {
		return nil, err
	}

	result := &models.CrawlResult{
		StartTime:    time.Now(),
		PageCount:    pageCount,
		ErrorsByType: make(map[string]int),
	}

	outcomes := make(chan pageOutcome)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for outcome := range outcomes {
			c.collect(result, outcome)
		}
	}()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			outcomes <- c.process(task)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-collected

	sort.Ints(result.FailedPages)
	result.EndTime = time.Now()
	return result, nil
}

func (c *Crawler) process(task models.PageTask) pageOutcome {
	content, err := c.fetcher.Fetch(task.URL)
	if err != nil {
		return pageOutcome{task: task, stage: "fetch", err: err}
	}
	parsed, err := c.parser.ParseWithStats(content)
	if err != nil {
		return pageOutcome{task: task, stage: "parse", err: fmt.Errorf("parse page %d: %w", task.PageNumber, err)}
	}
	return pageOutcome{task: task, records: parsed.Records, skipped: parsed.Skipped}
}

// collect runs on the single collector goroutine and owns result.
func (c *Crawler) collect(result *models.CrawlResult, outcome pageOutcome) {
	if outcome.err != nil {
		label := "parse"
		if outcome.stage == "fetch" {
			label = ErrorLabel(outcome.err)
		}
		result.FailedPages = append(result.FailedPages, outcome.task.PageNumber)
		result.ErrorsByType[label]++
		c.metrics.IncPage("failed")
		c.logger.Error("page skipped",
			slog.Int("page", outcome.task.PageNumber),
			slog.String("url", outcome.task.URL),
			slog.String("category", label),
			slog.Any("error", outcome.err),
		)
		return
	}

	result.FetchedPages++
	result.SkippedCards += outcome.skipped
	result.Records = append(result.Records, outcome.records...)
	c.metrics.IncPage("fetched")
	c.metrics.AddItems(len(outcome.records))
	c.metrics.AddSkipped(outcome.skipped)

	if len(outcome.records) == 0 {
		c.logger.Warn("page has no products", slog.Int("page", outcome.task.PageNumber))
		return
	}
	c.logger.Info("page scraped",
		slog.Int("page", outcome.task.PageNumber),
		slog.Int("products", len(outcome.records)),
		slog.Int("skipped_cards", outcome.skipped),
	)
}
