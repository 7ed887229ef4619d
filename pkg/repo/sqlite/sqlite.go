// Package sqlite provides the embedded single-file Store used by the CLI
// and by local deployments that do not run Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dealradar/dealradar/engine/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	store      TEXT NOT NULL,
	sku        TEXT NOT NULL,
	name       TEXT NOT NULL,
	brand      TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	stock      TEXT NOT NULL DEFAULT 'unknown',
	url        TEXT NOT NULL DEFAULT '',
	first_seen DATETIME NOT NULL,
	UNIQUE (store, sku)
);

CREATE TABLE IF NOT EXISTS price_observations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id      INTEGER NOT NULL REFERENCES products(id),
	observed_at     DATETIME NOT NULL,
	listed_cents    INTEGER NOT NULL,
	effective_cents INTEGER NOT NULL,
	label           TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT 'PEN'
);

CREATE INDEX IF NOT EXISTS idx_observations_product_time
	ON price_observations (product_id, observed_at);

CREATE TABLE IF NOT EXISTS scraping_runs (
	id         TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	ended_at   DATETIME NOT NULL,
	status     TEXT NOT NULL,
	outcomes   TEXT NOT NULL
);
`

// Store implements repo.Store on an embedded SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}
	// The pure-Go driver serializes writes itself but fails fast on
	// concurrent write transactions unless pooling is limited.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p catalog.Product) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (store, sku, name, brand, category, stock, url, first_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(store, sku)
		 DO UPDATE SET name = excluded.name, brand = excluded.brand,
		               category = excluded.category, stock = excluded.stock,
		               url = excluded.url`,
		p.Store, p.SKU, p.Name, p.Brand, p.Category, string(p.Stock), p.URL, p.FirstSeen.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("upserting product %s: %w", p.Key(), err)
	}

	// LastInsertId is unreliable across upserts, resolve the id by key.
	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM products WHERE store = ? AND sku = ?`, p.Store, p.SKU,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving product id for %s: %w", p.Key(), err)
	}
	return id, nil
}

func (s *Store) AppendObservation(ctx context.Context, o catalog.PriceObservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_observations (product_id, observed_at, listed_cents, effective_cents, label, currency)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ProductID, o.ObservedAt.UTC(), int64(o.Listed), int64(o.Effective), o.Label, o.Currency,
	)
	if err != nil {
		return fmt.Errorf("appending observation for product %d: %w", o.ProductID, err)
	}
	return nil
}

func (s *Store) LatestObservation(ctx context.Context, productID int64) (catalog.PriceObservation, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, observed_at, listed_cents, effective_cents, label, currency
		 FROM price_observations
		 WHERE product_id = ?
		 ORDER BY observed_at DESC
		 LIMIT 1`, productID)

	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return catalog.PriceObservation{}, false, nil
	}
	if err != nil {
		return catalog.PriceObservation{}, false, fmt.Errorf("loading latest observation: %w", err)
	}
	return o, true, nil
}

func (s *Store) PriceHistory(ctx context.Context, productID int64, since time.Time) ([]catalog.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, observed_at, listed_cents, effective_cents, label, currency
		 FROM price_observations
		 WHERE product_id = ? AND observed_at >= ?
		 ORDER BY observed_at ASC`, productID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("loading price history: %w", err)
	}
	defer rows.Close()

	var out []catalog.PriceObservation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) Products(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, store, sku, name, brand, category, stock, url, first_seen
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		var stock string
		if err := rows.Scan(&p.ID, &p.Store, &p.SKU, &p.Name, &p.Brand, &p.Category, &stock, &p.URL, &p.FirstSeen); err != nil {
			return nil, err
		}
		p.Stock = catalog.StockStatus(stock)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RecordRun(ctx context.Context, run catalog.ScrapingRun) error {
	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return fmt.Errorf("encoding run outcomes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scraping_runs (id, started_at, ended_at, status, outcomes)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.EndedAt.UTC(), string(run.Status), string(outcomes),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) PurgeObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_observations WHERE observed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging observations: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (catalog.PriceObservation, error) {
	var o catalog.PriceObservation
	var listed, effective int64
	err := row.Scan(&o.ID, &o.ProductID, &o.ObservedAt, &listed, &effective, &o.Label, &o.Currency)
	if err != nil {
		return catalog.PriceObservation{}, err
	}
	o.Listed = catalog.Money(listed)
	o.Effective = catalog.Money(effective)
	return o, nil
}
