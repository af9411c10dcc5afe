package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-scrape-ikea/models"
)

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	price         DOUBLE PRECISION,
	currency      TEXT,
	availability  TEXT NOT NULL,
	rating        DOUBLE PRECISION,
	review_count  INTEGER,
	main_image    TEXT,
	images        TEXT[],
	description   TEXT,
	measurements  TEXT,
	product_type  TEXT,
	features      TEXT[],
	url           TEXT NOT NULL,
	category      TEXT NOT NULL,
	retrieved_at  TIMESTAMPTZ NOT NULL
)`

const insertProduct = `
INSERT INTO products (
	id, name, price, currency, availability, rating, review_count,
	main_image, images, description, measurements, product_type,
	features, url, category, retrieved_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO NOTHING`

// PostgresWriter persists records into a products table. Inserts are
// idempotent on id, so a re-run against the same database cannot
// duplicate rows.
type PostgresWriter struct {
	pool *pgxpool.Pool
	ctx  context.Context
}

// NewPostgresWriter connects, pings, and ensures the schema exists.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, productsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresWriter{pool: pool, ctx: ctx}, nil
}

// Write inserts one batch inside a transaction.
func (pw *PostgresWriter) Write(products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := pw.pool.Begin(pw.ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(pw.ctx)

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(insertProduct,
			p.ID, p.Name, p.Price, nullString(p.Currency), p.Availability,
			p.Rating, p.ReviewCount, nullString(p.MainImage), p.Images,
			nullString(p.Description), nullString(p.Measurements),
			nullString(p.Type), p.Features, p.SourceURL, p.Category,
			p.RetrievedAt,
		)
	}

	results := tx.SendBatch(pw.ctx, batch)
	for range products {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert product: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(pw.ctx)
}

// Close releases the connection pool.
func (pw *PostgresWriter) Close() error {
	pw.pool.Close()
	return nil
}

// Validate ensures at least one row landed.
func (pw *PostgresWriter) Validate() error {
	var count int64
	if err := pw.pool.QueryRow(pw.ctx, "SELECT count(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("products table is empty")
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
