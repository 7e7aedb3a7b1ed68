package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxChartBrands caps the slices of the brand share chart.
const maxChartBrands = 8

// MarkdownReport renders a Summary of each written dataset as Markdown.
type MarkdownReport struct {
	output         io.Writer
	file           *os.File
	minRatingCount int
	mu             sync.Mutex
}

// NewMarkdownReport writes reports to w.
func NewMarkdownReport(w io.Writer, minRatingCount int) *MarkdownReport {
	return &MarkdownReport{output: w, minRatingCount: minRatingCount}
}

// NewMarkdownReportFile creates (or truncates) filename and writes reports
// to it.
func NewMarkdownReportFile(filename string, minRatingCount int) (*MarkdownReport, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create report file: %w", err)
	}
	return &MarkdownReport{output: f, file: f, minRatingCount: minRatingCount}, nil
}

// Write summarizes ds and renders the report.
func (r *MarkdownReport) Write(ds *models.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RenderSummary(r.output, Summarize(ds, r.minRatingCount))
}

// Close closes the report file, if the report owns one.
func (r *MarkdownReport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// RenderSummary writes s to w as Markdown.
func RenderSummary(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Product Listing Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + s.Source + "`"},
			{"Products", strconv.Itoa(s.Products)},
			{"Brands", strconv.Itoa(s.Brands)},
			{"Rows loaded", strconv.Itoa(s.Stats.Loaded)},
			{"Dropped (missing brand, name or price)", strconv.Itoa(s.Stats.MissingCritical)},
			{"Duplicates removed", strconv.Itoa(s.Stats.Duplicates)},
		},
	})
	md.PlainText("")

	md.H2("Prices")
	md.PlainText("")
	if s.Price.Priced == 0 {
		md.Note("No product has a parsed price.")
	} else {
		md.Table(markdown.TableSet{
			Header: []string{"Priced", "Min (TL)", "Mean (TL)", "Max (TL)"},
			Rows: [][]string{{
				strconv.Itoa(s.Price.Priced),
				formatTL(s.Price.Min),
				formatTL(s.Price.Mean),
				formatTL(s.Price.Max),
			}},
		})
	}
	md.PlainText("")

	writeBrandAnalysis(md, s)

	return md.Build()
}

func writeBrandAnalysis(md *markdown.Markdown, s Summary) {
	md.H2("Brand Analysis")
	md.PlainText("")
	md.PlainTextf("Products with at least %d ratings: %d", s.MinRatingCount, s.Qualified)
	md.PlainText("")

	if len(s.ByBrand) == 0 {
		md.Tip("No product reached the rating threshold; lower it to include more brands.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(s.ByBrand))
	for _, b := range s.ByBrand {
		rows = append(rows, []string{
			b.Brand,
			strconv.Itoa(b.Products),
			strconv.FormatFloat(b.MeanRating, 'f', 2, 64),
			formatTL(b.MeanPrice),
			b.TopRated.Name,
			strconv.FormatFloat(b.TopRated.RatingScore, 'f', 1, 64),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Brand", "Products", "Mean Rating", "Mean Price (TL)", "Top Rated", "Rating"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Product Share by Brand"),
		piechart.WithShowData(true),
	)
	other := 0
	for i, b := range s.ByBrand {
		if i < maxChartBrands {
			chart.LabelAndIntValue(b.Brand, uint64(b.Products))
			continue
		}
		other += b.Products
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", uint64(other))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func formatTL(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
