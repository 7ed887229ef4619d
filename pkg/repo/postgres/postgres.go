// Package postgres provides the shared Store used by multi-instance
// deployments. Queries are built with squirrel against lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/dealradar/dealradar/engine/catalog"
)

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id         BIGSERIAL PRIMARY KEY,
	store      TEXT NOT NULL,
	sku        TEXT NOT NULL,
	name       TEXT NOT NULL,
	brand      TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	stock      TEXT NOT NULL DEFAULT 'unknown',
	url        TEXT NOT NULL DEFAULT '',
	first_seen TIMESTAMPTZ NOT NULL,
	UNIQUE (store, sku)
);

CREATE TABLE IF NOT EXISTS price_observations (
	id              BIGSERIAL PRIMARY KEY,
	product_id      BIGINT NOT NULL REFERENCES products(id),
	observed_at     TIMESTAMPTZ NOT NULL,
	listed_cents    BIGINT NOT NULL,
	effective_cents BIGINT NOT NULL,
	label           TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT 'PEN'
);

CREATE INDEX IF NOT EXISTS idx_observations_product_time
	ON price_observations (product_id, observed_at);

CREATE TABLE IF NOT EXISTS scraping_runs (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL,
	status     TEXT NOT NULL,
	outcomes   JSONB NOT NULL
);
`

// Store implements repo.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects with the given DSN and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p catalog.Product) (int64, error) {
	var id int64
	err := qb.Insert("products").
		SetMap(map[string]interface{}{
			"store":      p.Store,
			"sku":        p.SKU,
			"name":       p.Name,
			"brand":      p.Brand,
			"category":   p.Category,
			"stock":      string(p.Stock),
			"url":        p.URL,
			"first_seen": p.FirstSeen.UTC(),
		}).
		Suffix(`ON CONFLICT (store, sku)
			DO UPDATE SET name = excluded.name, brand = excluded.brand,
			              category = excluded.category, stock = excluded.stock,
			              url = excluded.url
			RETURNING id`).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting product %s: %w", p.Key(), err)
	}
	return id, nil
}

func (s *Store) AppendObservation(ctx context.Context, o catalog.PriceObservation) error {
	_, err := qb.Insert("price_observations").
		SetMap(map[string]interface{}{
			"product_id":      o.ProductID,
			"observed_at":     o.ObservedAt.UTC(),
			"listed_cents":    int64(o.Listed),
			"effective_cents": int64(o.Effective),
			"label":           o.Label,
			"currency":        o.Currency,
		}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("appending observation for product %d: %w", o.ProductID, err)
	}
	return nil
}

func (s *Store) LatestObservation(ctx context.Context, productID int64) (catalog.PriceObservation, bool, error) {
	row := qb.Select("id", "product_id", "observed_at", "listed_cents", "effective_cents", "label", "currency").
		From("price_observations").
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("observed_at DESC").
		Limit(1).
		RunWith(s.db).
		QueryRowContext(ctx)

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
	rows, err := qb.Select("id", "product_id", "observed_at", "listed_cents", "effective_cents", "label", "currency").
		From("price_observations").
		Where(squirrel.And{
			squirrel.Eq{"product_id": productID},
			squirrel.GtOrEq{"observed_at": since.UTC()},
		}).
		OrderBy("observed_at ASC").
		RunWith(s.db).
		QueryContext(ctx)
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
	rows, err := qb.Select("id", "store", "sku", "name", "brand", "category", "stock", "url", "first_seen").
		From("products").
		OrderBy("id").
		RunWith(s.db).
		QueryContext(ctx)
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
	_, err = qb.Insert("scraping_runs").
		SetMap(map[string]interface{}{
			"id":         run.ID,
			"started_at": run.StartedAt.UTC(),
			"ended_at":   run.EndedAt.UTC(),
			"status":     string(run.Status),
			"outcomes":   outcomes,
		}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) PurgeObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := qb.Delete("price_observations").
		Where(squirrel.Lt{"observed_at": cutoff.UTC()}).
		RunWith(s.db).
		ExecContext(ctx)
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
