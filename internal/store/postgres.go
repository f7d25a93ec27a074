package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/platform/db"
	"github.com/toolroom-erp/toolroom/internal/procurement"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

//go:embed schema.sql
var schemaSQL string

// Postgres stores documents in a single JSONB table.
type Postgres struct {
	documents
	pool *pgxpool.Pool
}

// NewPostgres wraps pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{documents: documents{src: pgSource{q: pool}}, pool: pool}
}

// Migrate creates the documents table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Inventory returns the inventory service view of the store.
func (p *Postgres) Inventory() inventory.RepositoryPort {
	return InventoryPort(p)
}

// WithTx executes fn inside a repeatable-read transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, documents{src: pgSource{q: tx}})
	})
	return translate(err)
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// translate reports serialization conflicts as workflow errors; callers re-issue deliberately.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return &shared.Error{Kind: shared.KindInvalidState, Message: "concurrent update, reload and try again", Err: err}
	}
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgSource struct {
	q querier
}

func (s pgSource) load(ctx context.Context, collection, id string) ([]byte, bool, error) {
	var body []byte
	err := s.q.QueryRow(ctx, `SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load %s %s: %w", collection, id, err)
	}
	return body, true, nil
}

func (s pgSource) scan(ctx context.Context, collection string, fn func([]byte) error) error {
	rows, err := s.q.Query(ctx, `SELECT body FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return fmt.Errorf("store: scan %s: %w", collection, err)
	}
	defer rows.Close()
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return fmt.Errorf("store: scan %s: %w", collection, err)
		}
		if err := fn(body); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s pgSource) save(ctx context.Context, collection, id string, body []byte) error {
	_, err := s.q.Exec(ctx, `
INSERT INTO documents (collection, id, body)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("store: save %s %s: %w", collection, id, err)
	}
	return nil
}
