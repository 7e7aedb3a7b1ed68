// Package parser extracts raw product records from listing page markup.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyCard marks a card element where none of the product fields matched.
var ErrEmptyCard = errors.New("card has no product fields")

// ParseError reports a product card that could not be extracted.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("card %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result is the outcome of parsing one page.
type Result struct {
	Records []models.RawProduct
	Skipped int
}

// Parser turns listing pages into raw product records.
type Parser struct {
	selectors config.Selectors
	logger    *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for skipped-card warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds a parser for the given selectors.
func New(selectors config.Selectors, opts ...Option) *Parser {
	p := &Parser{selectors: selectors}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Parse returns the product records found in content. A page without cards
// yields an empty slice and no error.
func (p *Parser) Parse(content []byte) ([]models.RawProduct, error) {
	res, err := p.ParseWithStats(content)
	return res.Records, err
}

// ParseWithStats is Parse plus the number of skipped cards. The error is
// non-nil only when the document itself cannot be read.
func (p *Parser) ParseWithStats(content []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(decode(content))
	if err != nil {
		return Result{}, fmt.Errorf("read page: %w", err)
	}

	var res Result
	doc.Find(p.selectors.Card).Each(func(i int, card *goquery.Selection) {
		record, err := p.extractCard(i, card)
		if err != nil {
			res.Skipped++
			p.logger.Warn("skipping product card", slog.Int("index", i), slog.Any("error", err))
			return
		}
		res.Records = append(res.Records, record)
	})
	return res, nil
}

func (p *Parser) extractCard(index int, card *goquery.Selection) (record models.RawProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = models.RawProduct{}
			err = &ParseError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	record = models.RawProduct{
		Brand:          childText(card, p.selectors.Brand),
		Name:           childText(card, p.selectors.Name),
		Description:    childText(card, p.selectors.Description),
		RatingScoreRaw: childText(card, p.selectors.RatingScore),
		RatingCountRaw: strings.TrimSpace(strings.Trim(childText(card, p.selectors.RatingCount), "()")),
		PriceRaw:       childText(card, p.selectors.Price),
	}
	if record.Empty() {
		return models.RawProduct{}, &ParseError{Index: index, Err: ErrEmptyCard}
	}
	return record, nil
}

// childText returns the normalized text of the first match of selector
// inside card, or "" when nothing matches.
func childText(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	match := card.Find(selector).First()
	if match.Length() == 0 {
		return ""
	}
	return NormalizeText(match.Text())
}

// NormalizeText collapses whitespace runs and applies Unicode NFC so that
// identical products scraped from different pages compare equal.
func NormalizeText(text string) string {
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}

// decode converts legacy-encoded pages to UTF-8; valid UTF-8 passes through.
func decode(content []byte) io.Reader {
	if utf8.Valid(content) {
		return bytes.NewReader(content)
	}
	enc, _, _ := charset.DetermineEncoding(content, "text/html")
	return transform.NewReader(bytes.NewReader(content), enc.NewDecoder())
}
