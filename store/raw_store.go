// Package store persists raw scraped products as an append-only CSV file.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// Column names of the raw store, in file order.
const (
	ColumnBrand       = "Product Brand"
	ColumnName        = "Product Name"
	ColumnDescription = "Product Description"
	ColumnRatingScore = "Rating Score"
	ColumnRatingCount = "Rating Count"
	ColumnPrice       = "Price (TL)"
)

// Header is the header row of every raw store file.
var Header = []string{
	ColumnBrand,
	ColumnName,
	ColumnDescription,
	ColumnRatingScore,
	ColumnRatingCount,
	ColumnPrice,
}

var (
	// ErrSchemaMismatch is returned when appending to a file whose header is
	// not Header.
	ErrSchemaMismatch = errors.New("raw store header does not match schema")
	// ErrEmptyFile is returned by ReadAll for a zero-length file.
	ErrEmptyFile = errors.New("raw store file is empty")
	// ErrMissingColumn is returned by ReadAll when a header column is absent.
	ErrMissingColumn = errors.New("raw store column missing")
)

// Option configures a RawStore.
type Option func(*RawStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *RawStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// RawStore appends raw product rows to CSV files.
type RawStore struct {
	mu     sync.Mutex
	logger *slog.Logger
}

// New returns a RawStore.
func New(opts ...Option) *RawStore {
	s := &RawStore{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes records to path. A new or empty file gets the header row
// first; an existing file keeps its header and gains the rows at the end.
func (s *RawStore) Append(records []models.RawProduct, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open raw store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat raw store: %w", err)
	}

	writeHeader := info.Size() == 0
	if !writeHeader {
		if err := checkHeader(f); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := ensureTrailingNewline(f, info.Size()); err != nil {
			return err
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek raw store: %w", err)
	}

	writer := csv.NewWriter(f)
	if writeHeader {
		if err := writer.Write(Header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, record := range records {
		if err := writer.Write(Row(record)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}

	s.logger.Info("raw store appended",
		slog.String("path", path),
		slog.Int("rows", len(records)),
		slog.Bool("header_written", writeHeader),
	)
	return nil
}

// Row returns the CSV cells of a record in Header order.
func Row(p models.RawProduct) []string {
	return []string{
		p.Brand,
		p.Name,
		p.Description,
		p.RatingScoreRaw,
		p.RatingCountRaw,
		p.PriceRaw,
	}
}

// ReadAll reads every row of the raw store at path. Columns are located by
// header name, so extra columns are ignored.
func ReadAll(path string) ([]models.RawProduct, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Read parses raw store CSV from r.
func Read(r io.Reader) ([]models.RawProduct, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []models.RawProduct
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		records = append(records, models.RawProduct{
			Brand:          row[index[ColumnBrand]],
			Name:           row[index[ColumnName]],
			Description:    row[index[ColumnDescription]],
			RatingScoreRaw: row[index[ColumnRatingScore]],
			RatingCountRaw: row[index[ColumnRatingCount]],
			PriceRaw:       row[index[ColumnPrice]],
		})
	}
	return records, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	for _, name := range Header {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return index, nil
}

func checkHeader(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek raw store: %w", err)
	}
	header, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("read existing header: %w", err)
	}
	if len(header) != len(Header) {
		return ErrSchemaMismatch
	}
	for i, name := range header {
		if strings.TrimPrefix(name, "\ufeff") != Header[i] {
			return ErrSchemaMismatch
		}
	}
	return nil
}

// ensureTrailingNewline terminates a last line written by another tool
// without a newline so appended rows start on their own line.
func ensureTrailingNewline(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("read raw store tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek raw store: %w", err)
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("terminate raw store: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
