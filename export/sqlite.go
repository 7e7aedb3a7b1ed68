package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aluiziolira/go-scrape-listings/models"
)

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	brand TEXT NOT NULL,
	name TEXT NOT NULL,
	rating_score REAL NOT NULL,
	rating_count INTEGER NOT NULL,
	price REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand);

CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	loaded INTEGER NOT NULL,
	missing_critical INTEGER NOT NULL,
	duplicates INTEGER NOT NULL,
	kept INTEGER NOT NULL
);
`

// SQLiteWriter stores the latest cleaned dataset in a SQLite database. Each
// Write replaces the products table and records a snapshot row.
type SQLiteWriter struct {
	db   *sql.DB
	path string
}

// NewSQLiteWriter opens or creates the database at path.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), productsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteWriter{db: db, path: path}, nil
}

// Write replaces the stored products with ds in one transaction.
func (sw *SQLiteWriter) Write(ds *models.Dataset) error {
	if ds == nil {
		return nil
	}
	ctx := context.Background()

	tx, err := sw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO products (brand, name, rating_score, rating_count, price) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range ds.Records {
		if _, err := stmt.ExecContext(ctx, p.Brand, p.Name, p.RatingScore, p.RatingCount, p.Price); err != nil {
			return fmt.Errorf("insert product %q: %w", p.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (source, created_at, loaded, missing_critical, duplicates, kept) VALUES (?, ?, ?, ?, ?, ?)",
		ds.Source, time.Now().UTC(), ds.Stats.Loaded, ds.Stats.MissingCritical, ds.Stats.Duplicates, ds.Stats.Kept)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Products reads back the stored products in insertion order.
func (sw *SQLiteWriter) Products(ctx context.Context) ([]models.CleanedProduct, error) {
	rows, err := sw.db.QueryContext(ctx,
		"SELECT brand, name, rating_score, rating_count, price FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.CleanedProduct
	for rows.Next() {
		var p models.CleanedProduct
		if err := rows.Scan(&p.Brand, &p.Name, &p.RatingScore, &p.RatingCount, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SnapshotCount returns how many datasets have been written.
func (sw *SQLiteWriter) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	if err := sw.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}
