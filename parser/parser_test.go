package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-listings/config"
)

func card(brand, name, desc, score, count, price string) string {
	var b strings.Builder
	b.WriteString(`<div class="p-card-wrppr"><div class="prdct-desc-cntnr">`)
	if brand != "" {
		fmt.Fprintf(&b, `<span class="prdct-desc-cntnr-ttl">%s</span>`, brand)
	}
	if name != "" {
		fmt.Fprintf(&b, `<span class="prdct-desc-cntnr-name hasRatings">%s</span>`, name)
	}
	if desc != "" {
		fmt.Fprintf(&b, `<div class="product-desc-sub-text">%s</div>`, desc)
	}
	b.WriteString(`</div>`)
	if score != "" {
		fmt.Fprintf(&b, `<span class="rating-score">%s</span>`, score)
	}
	if count != "" {
		fmt.Fprintf(&b, `<div class="ratings">%s</div>`, count)
	}
	if price != "" {
		fmt.Fprintf(&b, `<div class="price-item discounted">%s</div>`, price)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func page(cards ...string) []byte {
	return []byte("<html><body><div class=\"prdct-cntnr-wrppr\">" + strings.Join(cards, "") + "</div></body></html>")
}

func TestParseExtractsAllFields(t *testing.T) {
	p := New(config.DefaultSelectors())

	records, err := p.Parse(page(card("Apple", "iPhone 13 128 GB", "Siyah", "4.6", "(1.234)", "32.999,00 TL")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}

	got := records[0]
	if got.Brand != "Apple" || got.Name != "iPhone 13 128 GB" || got.Description != "Siyah" {
		t.Fatalf("unexpected text fields: %+v", got)
	}
	if got.RatingScoreRaw != "4.6" {
		t.Fatalf("rating score=%q", got.RatingScoreRaw)
	}
	if got.RatingCountRaw != "1.234" {
		t.Fatalf("rating count=%q, want parentheses stripped", got.RatingCountRaw)
	}
	if got.PriceRaw != "32.999,00 TL" {
		t.Fatalf("price=%q", got.PriceRaw)
	}
}

func TestParseMissingFieldsAreEmpty(t *testing.T) {
	p := New(config.DefaultSelectors())

	records, err := p.Parse(page(card("Samsung", "", "", "", "", "12.345,67 TL")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1 (missing fields must not drop the card)", len(records))
	}
	got := records[0]
	if got.Name != "" || got.Description != "" || got.RatingScoreRaw != "" || got.RatingCountRaw != "" {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}
	if got.Brand != "Samsung" || got.PriceRaw != "12.345,67 TL" {
		t.Fatalf("unexpected fields: %+v", got)
	}
}

func TestParseSkipsMalformedCards(t *testing.T) {
	tests := []struct {
		name      string
		cards     []string
		wantCount int
		wantSkip  int
	}{
		{
			name: "all valid",
			cards: []string{
				card("A", "Phone A", "", "4.1", "(10)", "1.000 TL"),
				card("B", "Phone B", "", "4.2", "(20)", "2.000 TL"),
				card("C", "Phone C", "", "4.3", "(30)", "3.000 TL"),
			},
			wantCount: 3,
		},
		{
			name: "one of three malformed",
			cards: []string{
				card("A", "Phone A", "", "4.1", "(10)", "1.000 TL"),
				`<div class="p-card-wrppr"><img src="ad.png"/></div>`,
				card("C", "Phone C", "", "4.3", "(30)", "3.000 TL"),
			},
			wantCount: 2,
			wantSkip:  1,
		},
		{
			name: "every card malformed",
			cards: []string{
				`<div class="p-card-wrppr"></div>`,
				`<div class="p-card-wrppr">  </div>`,
			},
			wantCount: 0,
			wantSkip:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(config.DefaultSelectors())
			res, err := p.ParseWithStats(page(tt.cards...))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(res.Records) != tt.wantCount {
				t.Fatalf("records=%d, want %d", len(res.Records), tt.wantCount)
			}
			if res.Skipped != tt.wantSkip {
				t.Fatalf("skipped=%d, want %d", res.Skipped, tt.wantSkip)
			}
		})
	}
}

func TestParseEmptyPage(t *testing.T) {
	p := New(config.DefaultSelectors())

	for _, content := range [][]byte{nil, []byte("<html><body><p>Aradığınız kriterlere uygun ürün bulunamadı</p></body></html>")} {
		records, err := p.Parse(content)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("records=%d, want 0", len(records))
		}
	}
}

func TestParseNormalizesWhitespace(t *testing.T) {
	p := New(config.DefaultSelectors())

	records, err := p.Parse(page(card("  Xiaomi\n ", "Redmi   Note\t12", "", " 4.5 ", "( 87 )", "\n 9.499 TL ")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := records[0]
	if got.Brand != "Xiaomi" || got.Name != "Redmi Note 12" {
		t.Fatalf("text not normalized: %+v", got)
	}
	if got.RatingScoreRaw != "4.5" || got.RatingCountRaw != "87" || got.PriceRaw != "9.499 TL" {
		t.Fatalf("numeric text not normalized: %+v", got)
	}
}

func TestParseDecodesLegacyCharset(t *testing.T) {
	p := New(config.DefaultSelectors())

	// "Kırmızı" in windows-1254.
	brand := "K\xfdrm\xfdz\xfd"
	content := []byte(`<html><head><meta charset="windows-1254"></head><body>` +
		card(brand, "Phone", "", "", "", "100 TL") + `</body></html>`)

	records, err := p.Parse(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}
	if records[0].Brand != "Kırmızı" {
		t.Fatalf("brand=%q, want Kırmızı", records[0].Brand)
	}
}

func TestParseCustomSelectors(t *testing.T) {
	sel := config.Selectors{
		Card:  "li.item",
		Brand: "b",
		Name:  "h2",
		Price: ".price",
	}
	p := New(sel)

	records, err := p.Parse([]byte(`<ul><li class="item"><b>Nokia</b><h2>3310</h2><i class="price">499,90 TL</i></li></ul>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1 || records[0].Brand != "Nokia" || records[0].PriceRaw != "499,90 TL" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	err := error(&ParseError{Index: 2, Err: ErrEmptyCard})
	if !errors.Is(err, ErrEmptyCard) {
		t.Fatalf("expected ErrEmptyCard in chain")
	}
	if !strings.Contains(err.Error(), "card 2") {
		t.Fatalf("error message %q should name the card index", err.Error())
	}
}
