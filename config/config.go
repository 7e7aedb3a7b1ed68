package config

import (
	"fmt"
	"net/url"
	"time"
)

// Selectors holds the CSS selectors used to locate product cards and their
// fields inside a listing page.
type Selectors struct {
	Card        string `yaml:"card"`
	Brand       string `yaml:"brand"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	RatingScore string `yaml:"rating_score"`
	RatingCount string `yaml:"rating_count"`
	Price       string `yaml:"price"`
}

// DefaultSelectors matches the category listing markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:        "div.p-card-wrppr",
		Brand:       "span.prdct-desc-cntnr-ttl",
		Name:        "span.prdct-desc-cntnr-name.hasRatings",
		Description: "div.product-desc-sub-text",
		RatingScore: "span.rating-score",
		RatingCount: "div.ratings",
		Price:       "div.price-item.discounted",
	}
}

// Config holds scraper configuration.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	PageParam      string        `yaml:"page_param"`
	Pages          int           `yaml:"pages"`
	Concurrency    int           `yaml:"concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	MaxBodySize    int           `yaml:"max_body_size"`
	OutputFile     string        `yaml:"output_file"`
	Selectors      Selectors     `yaml:"selectors"`
	PriceCacheSize int           `yaml:"price_cache_size"`
	MinRatingCount int           `yaml:"min_rating_count"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	Verbose        bool          `yaml:"verbose"`
}

// DefaultConfig returns defaults for the phone category listing.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://www.trendyol.com/cep-telefonu-x-c103498",
		PageParam:      "pi",
		Pages:          10,
		Concurrency:    5,
		Timeout:        10 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		AcceptLanguage: "tr-TR,tr;q=0.9,en;q=0.8",
		MaxBodySize:    10 * 1024 * 1024,
		OutputFile:     "data/raw_data.csv",
		Selectors:      DefaultSelectors(),
		PriceCacheSize: 4096,
		MinRatingCount: 75,
		MetricsAddr:    "",
		Verbose:        false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.PageParam == "" {
		return fmt.Errorf("page param cannot be empty")
	}
	if c.Pages <= 0 {
		return fmt.Errorf("pages must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.Selectors.Card == "" {
		return fmt.Errorf("card selector cannot be empty")
	}
	if c.PriceCacheSize < 0 {
		return fmt.Errorf("price cache size cannot be negative")
	}
	if c.MinRatingCount < 0 {
		return fmt.Errorf("min rating count cannot be negative")
	}

	return nil
}
