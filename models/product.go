// Package models defines data structures for the scraper.
package models

import "time"

// PageTask identifies one listing page to fetch.
type PageTask struct {
	PageNumber int
	URL        string
}

// RawProduct is one product card as scraped. Every field is optional; an
// empty string means the selector did not match.
type RawProduct struct {
	Brand          string `csv:"Product Brand" json:"brand"`
	Name           string `csv:"Product Name" json:"name"`
	Description    string `csv:"Product Description" json:"description"`
	RatingScoreRaw string `csv:"Rating Score" json:"rating_score_raw"`
	RatingCountRaw string `csv:"Rating Count" json:"rating_count_raw"`
	PriceRaw       string `csv:"Price (TL)" json:"price_raw"`
}

// Empty reports whether no field was extracted.
func (p RawProduct) Empty() bool {
	return p == RawProduct{}
}

// CleanedProduct is a validated, type-coerced product row.
type CleanedProduct struct {
	Brand       string  `json:"brand"`
	Name        string  `json:"name"`
	RatingScore float64 `json:"rating_score"`
	RatingCount int     `json:"rating_count"`
	Price       float64 `json:"price"`
}

// CleanStats counts what the cleaner did to the raw rows.
type CleanStats struct {
	Loaded          int
	MissingCritical int
	Duplicates      int
	Kept            int
	Coerced         map[string]int
}

// Dataset is the cleaned, deduplicated product table.
type Dataset struct {
	Source  string
	Records []CleanedProduct
	Stats   CleanStats
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	Records      []RawProduct
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	FetchedPages int
	FailedPages  []int
	SkippedCards int
	ErrorsByType map[string]int
}

// Duration returns the wall-clock time of the crawl.
func (r *CrawlResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
