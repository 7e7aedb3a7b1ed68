package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-listings/cleaner"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/scraper"
	"github.com/aluiziolira/go-scrape-listings/store"
	"github.com/jarcoal/httpmock"
)

const baseURL = "http://shop.test/cep-telefonu-x-c103498"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func productCard(brand, name, ratingScore, ratingCount, price string) string {
	return fmt.Sprintf(`<div class="p-card-wrppr">`+
		`<span class="prdct-desc-cntnr-ttl">%s</span>`+
		`<span class="prdct-desc-cntnr-name hasRatings">%s</span>`+
		`<div class="product-desc-sub-text">128 GB</div>`+
		`<span class="rating-score">%s</span>`+
		`<div class="ratings">(%s)</div>`+
		`<div class="price-item discounted">%s</div>`+
		`</div>`, brand, name, ratingScore, ratingCount, price)
}

func listingPage(cards ...string) string {
	return `<html><body><div class="prdct-cntnr-wrppr">` + strings.Join(cards, "") + `</div></body></html>`
}

const malformedCard = `<div class="p-card-wrppr"><div class="promo-banner"></div></div>`

func newMockedRunner(t *testing.T, transport http.RoundTripper) *Runner {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL

	r, err := NewRunner(cfg,
		WithLogger(quietLogger()),
		WithMetrics(scraper.NewMetrics()),
		WithTransport(transport),
	)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func registerTwoPages(transport *httpmock.MockTransport) {
	page1 := listingPage(
		productCard("Apple", "iPhone 13 128 GB", "4.6", "1234", "32.999,00 TL"),
		productCard("Samsung", "Galaxy A54", "4.4", "560", "14.250,50 TL"),
		productCard("Xiaomi", "Redmi Note 12", "4.5", "87", "9.499 TL"),
	)
	page2 := listingPage(
		productCard("Oppo", "Reno 8", "4.2", "45", "12.345,67 TL"),
		malformedCard,
		productCard("Realme", "C55", "4.3", "210", "199,90"),
	)
	transport.RegisterResponder(http.MethodGet, baseURL, httpmock.NewStringResponder(http.StatusOK, page1))
	transport.RegisterResponder(http.MethodGet, baseURL+"?pi=2", httpmock.NewStringResponder(http.StatusOK, page2))
}

func TestCrawlThenCleanEndToEnd(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerTwoPages(transport)
	r := newMockedRunner(t, transport)
	out := filepath.Join(t.TempDir(), "data", "raw_data.csv")

	count, err := r.Crawl(baseURL, 2, 2, out)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if count != 5 {
		t.Fatalf("crawl count=%d, want 5", count)
	}

	raw, err := store.ReadAll(out)
	if err != nil {
		t.Fatalf("read raw store: %v", err)
	}
	if len(raw) != 5 {
		t.Fatalf("raw rows=%d, want 5", len(raw))
	}

	ds, err := r.Clean(out)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if ds.Len() != 5 {
		t.Fatalf("cleaned records=%d, want 5", ds.Len())
	}

	prices := make(map[string]float64, ds.Len())
	for _, p := range ds.Records {
		prices[p.Brand] = p.Price
	}
	if prices["Oppo"] != 12345.67 || prices["Realme"] != 199.90 || prices["Apple"] != 32999 {
		t.Fatalf("unexpected prices %v", prices)
	}
}

func TestCrawlTwiceDuplicatesRawButNotCleaned(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerTwoPages(transport)
	r := newMockedRunner(t, transport)
	out := filepath.Join(t.TempDir(), "raw.csv")

	for i := 0; i < 2; i++ {
		if _, err := r.Crawl(baseURL, 2, 2, out); err != nil {
			t.Fatalf("crawl %d: %v", i, err)
		}
	}

	raw, err := store.ReadAll(out)
	if err != nil {
		t.Fatalf("read raw store: %v", err)
	}
	if len(raw) != 10 {
		t.Fatalf("raw rows=%d, want 10", len(raw))
	}

	ds, err := r.Clean(out)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if ds.Len() != 5 || ds.Stats.Duplicates != 5 {
		t.Fatalf("records=%d duplicates=%d, want 5/5", ds.Len(), ds.Stats.Duplicates)
	}
	if got := transport.GetTotalCallCount(); got != 4 {
		t.Fatalf("http calls=%d, want 4", got)
	}
}

func TestCrawlSurvivesFailedPage(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, baseURL, httpmock.NewStringResponder(http.StatusOK,
		listingPage(productCard("Apple", "iPhone", "4.6", "10", "30.000 TL"))))
	transport.RegisterResponder(http.MethodGet, baseURL+"?pi=2", httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))
	transport.RegisterResponder(http.MethodGet, baseURL+"?pi=3", httpmock.NewStringResponder(http.StatusOK,
		listingPage(productCard("Nokia", "3310", "4.9", "9000", "999 TL"))))

	r := newMockedRunner(t, transport)
	out := filepath.Join(t.TempDir(), "raw.csv")

	result, err := r.CrawlResult(baseURL, 3, 3, out)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records=%d, want 2", len(result.Records))
	}
	if len(result.FailedPages) != 1 || result.FailedPages[0] != 2 {
		t.Fatalf("failed pages=%v, want [2]", result.FailedPages)
	}
	if result.ErrorsByType["http_status"] != 1 {
		t.Fatalf("errors by type=%v", result.ErrorsByType)
	}
}

func TestCrawlWithNoRecordsWritesNothing(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(httpmock.NewStringResponder(http.StatusNotFound, ""))
	r := newMockedRunner(t, transport)
	out := filepath.Join(t.TempDir(), "raw.csv")

	count, err := r.Crawl(baseURL, 2, 2, out)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if count != 0 {
		t.Fatalf("count=%d, want 0", count)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("raw store should not exist, stat err=%v", err)
	}

	_, err = r.Clean(out)
	if !cleaner.IsLoadError(err) {
		t.Fatalf("expected load error for missing raw store, got %v", err)
	}
}

func TestCrawlRejectsBadArguments(t *testing.T) {
	r := newMockedRunner(t, httpmock.NewMockTransport())

	if _, err := r.Crawl(baseURL, 1, 1, ""); !errors.Is(err, ErrNoOutputPath) {
		t.Fatalf("expected ErrNoOutputPath, got %v", err)
	}
	if _, err := r.Crawl(baseURL, 0, 1, filepath.Join(t.TempDir(), "raw.csv")); err == nil {
		t.Fatalf("expected error for zero pages")
	}
}

type countingFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *countingFetcher) Fetch(url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	return []byte(listingPage(productCard("Brand", url, "4", "1", "1 TL"))), nil
}

func TestRunnerUsesInjectedFetcherAndPageParam(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PageParam = "page"
	f := &countingFetcher{}

	r, err := NewRunner(cfg, WithLogger(quietLogger()), WithFetcher(f))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	count, err := r.Crawl("http://shop.test/list", 3, 2, filepath.Join(t.TempDir(), "raw.csv"))
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if count != 3 || len(f.calls) != 3 {
		t.Fatalf("count=%d calls=%v", count, f.calls)
	}
	seen := make(map[string]bool)
	for _, u := range f.calls {
		seen[u] = true
	}
	if !seen["http://shop.test/list"] || !seen["http://shop.test/list?page=2"] || !seen["http://shop.test/list?page=3"] {
		t.Fatalf("unexpected urls %v", f.calls)
	}
}

func TestNewRunnerValidatesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Concurrency = 0
	if _, err := NewRunner(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPackageCleanReportsLoadError(t *testing.T) {
	_, err := Clean(filepath.Join(t.TempDir(), "missing.csv"))
	var loadErr *cleaner.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *cleaner.LoadError, got %v", err)
	}
}
