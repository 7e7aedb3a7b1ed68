// Package cleaner turns the raw store into a validated, deduplicated dataset.
package cleaner

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/store"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPriceCacheSize bounds the price memo when no size is given.
const DefaultPriceCacheSize = 4096

// LoadError means the raw store could not be read. No partial dataset is
// produced when it occurs.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load raw store %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is, or wraps, a *LoadError.
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}

type priceEntry struct {
	value float64
	err   error
}

// Option configures a Cleaner.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	priceCacheSize int
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPriceCacheSize bounds the memo of parsed price strings. Zero disables
// it.
func WithPriceCacheSize(size int) Option {
	return func(o *options) {
		o.priceCacheSize = size
	}
}

// Cleaner applies the cleaning rules to raw product rows. It is safe for
// concurrent use.
type Cleaner struct {
	prices *lru.Cache[string, priceEntry]
	logger *slog.Logger
}

// New builds a Cleaner.
func New(opts ...Option) (*Cleaner, error) {
	o := options{priceCacheSize: DefaultPriceCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.priceCacheSize < 0 {
		return nil, fmt.Errorf("price cache size cannot be negative")
	}

	c := &Cleaner{logger: o.logger}
	if o.priceCacheSize > 0 {
		cache, err := lru.New[string, priceEntry](o.priceCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create price cache: %w", err)
		}
		c.prices = cache
	}
	return c, nil
}

// Clean loads the raw store at path and returns the cleaned dataset. The
// only error is a *LoadError.
func (c *Cleaner) Clean(path string) (*models.Dataset, error) {
	records, err := store.ReadAll(path)
	if err != nil {
		c.logger.Error("raw store load failed", slog.String("path", path), slog.Any("error", err))
		return nil, &LoadError{Path: path, Err: err}
	}
	c.logger.Info("raw store loaded", slog.String("path", path), slog.Int("rows", len(records)))

	return c.CleanRecords(path, records), nil
}

// CleanRecords applies the cleaning rules to rows already in memory.
func (c *Cleaner) CleanRecords(source string, records []models.RawProduct) *models.Dataset {
	stats := models.CleanStats{
		Loaded:  len(records),
		Coerced: make(map[string]int),
	}

	seen := make(map[models.CleanedProduct]struct{}, len(records))
	cleaned := make([]models.CleanedProduct, 0, len(records))

	for i, raw := range records {
		score, err := ParseRatingScore(raw.RatingScoreRaw)
		if err != nil {
			c.noteCoercion(&stats, i, err)
		}
		count, err := ParseRatingCount(raw.RatingCountRaw)
		if err != nil {
			c.noteCoercion(&stats, i, err)
		}

		brand := strings.TrimSpace(raw.Brand)
		name := strings.TrimSpace(raw.Name)
		if brand == "" || name == "" || strings.TrimSpace(raw.PriceRaw) == "" {
			stats.MissingCritical++
			continue
		}

		price, err := c.price(raw.PriceRaw)
		if err != nil {
			c.noteCoercion(&stats, i, err)
		}

		product := models.CleanedProduct{
			Brand:       brand,
			Name:        name,
			RatingScore: score,
			RatingCount: count,
			Price:       price,
		}
		if _, dup := seen[product]; dup {
			stats.Duplicates++
			continue
		}
		seen[product] = struct{}{}
		cleaned = append(cleaned, product)
	}
	stats.Kept = len(cleaned)

	if stats.MissingCritical > 0 {
		c.logger.Info("rows with missing critical values removed", slog.Int("rows", stats.MissingCritical))
	}
	if stats.Duplicates > 0 {
		c.logger.Info("duplicate rows removed", slog.Int("rows", stats.Duplicates))
	}
	c.logger.Info("clean completed",
		slog.String("source", source),
		slog.Int("loaded", stats.Loaded),
		slog.Int("dropped", stats.MissingCritical),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("kept", stats.Kept),
	)

	return &models.Dataset{
		Source:  source,
		Records: cleaned,
		Stats:   stats,
	}
}

func (c *Cleaner) price(raw string) (float64, error) {
	if c.prices != nil {
		if entry, ok := c.prices.Get(raw); ok {
			return entry.value, entry.err
		}
	}

	value, err := ParsePrice(raw)
	if c.prices != nil {
		c.prices.Add(raw, priceEntry{value: value, err: err})
	}
	return value, err
}

func (c *Cleaner) noteCoercion(stats *models.CleanStats, row int, err error) {
	var coercionErr *CoercionError
	if !errors.As(err, &coercionErr) {
		return
	}
	stats.Coerced[coercionErr.Field]++
	c.logger.Debug("value defaulted to zero",
		slog.Int("row", row),
		slog.String("field", coercionErr.Field),
		slog.String("value", coercionErr.Value),
	)
}
