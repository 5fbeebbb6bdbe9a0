// Package postgres provides the Postgres-backed inventory store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/shelfscan/internal/book"
)

//go:embed schema.sql
var schemaSQL string

const table = "inventory"

// columns are read through COALESCE so rows written by older deployments
// with NULL text columns still scan into strings.
var columns = []string{
	"id",
	"COALESCE(title, '')",
	"COALESCE(author, '')",
	"COALESCE(publisher, '')",
	"COALESCE(image_url, '')",
	"COALESCE(description, '')",
	"COALESCE(isbn, '')",
	"COALESCE(published_date, '')",
	"COALESCE(official_cover_url, '')",
	"created_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// InventoryStore implements book.Store on Postgres.
type InventoryStore struct {
	pool pool
}

var _ book.Store = (*InventoryStore)(nil)

// NewInventoryStore connects a pool using the provided config.
func NewInventoryStore(ctx context.Context, cfg Config) (*InventoryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &InventoryStore{pool: p}, nil
}

// NewInventoryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewInventoryStoreWithPool(p pool) (*InventoryStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &InventoryStore{pool: p}, nil
}

// EnsureSchema creates the inventory table and its indexes when missing.
func (s *InventoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *InventoryStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *InventoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Begin opens a transaction.
func (s *InventoryStore) Begin(ctx context.Context) (book.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin inventory tx: %w", err)
	}
	return &inventoryTx{tx: tx}, nil
}

// List returns every record, newest first.
func (s *InventoryStore) List(ctx context.Context) ([]book.Record, error) {
	query, args, err := psql.Select(columns...).From(table).OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return collectRecords(rows)
}

// Delete removes one record, returning book.ErrNotFound when it does not exist.
func (s *InventoryStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM inventory WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %d: %w", id, book.ErrNotFound)
	}
	return nil
}

// Reset deletes every record and restarts the id sequence at 1.
func (s *InventoryStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE inventory RESTART IDENTITY"); err != nil {
		return fmt.Errorf("reset inventory: %w", err)
	}
	return nil
}

type inventoryTx struct {
	tx        pgx.Tx
	savepoint int
}

func (t *inventoryTx) FindByISBN(ctx context.Context, isbn string) (*book.Record, error) {
	if isbn == "" {
		return nil, nil
	}
	return t.findOne(ctx, sq.Eq{"isbn": isbn})
}

func (t *inventoryTx) FindByTitleAuthor(ctx context.Context, title, author string) (*book.Record, error) {
	return t.findOne(ctx, sq.Eq{"title": title, "author": author})
}

func (t *inventoryTx) findOne(ctx context.Context, where sq.Eq) (*book.Record, error) {
	query, args, err := psql.Select(columns...).From(table).Where(where).OrderBy("id").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lookup query: %w", err)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup inventory: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Insert isolates the statement in a savepoint so a rejected row leaves the
// surrounding transaction usable.
func (t *inventoryTx) Insert(ctx context.Context, rec book.NewRecord) (book.Record, error) {
	t.savepoint++
	sp := fmt.Sprintf("shelfscan_insert_%d", t.savepoint)
	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return book.Record{}, fmt.Errorf("savepoint: %w", err)
	}

	query, args, err := psql.Insert(table).
		Columns("title", "author", "publisher", "image_url", "description", "isbn", "published_date", "official_cover_url").
		Values(rec.Title, rec.Author, rec.Publisher, rec.ImageURL, rec.Description, rec.ISBN, rec.PublishedDate, rec.CoverImageURL).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return book.Record{}, fmt.Errorf("build insert: %w", err)
	}

	out := book.Record{
		Title:            rec.Title,
		Author:           rec.Author,
		Publisher:        rec.Publisher,
		ImageURL:         rec.ImageURL,
		Description:      rec.Description,
		ISBN:             rec.ISBN,
		PublishedDate:    rec.PublishedDate,
		OfficialCoverURL: rec.CoverImageURL,
	}
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&out.ID, &out.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return book.Record{}, fmt.Errorf("insert record: %w", err)
		}
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return book.Record{}, fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return book.Record{}, fmt.Errorf("%w: %s (%s)", book.ErrRecordRejected, pgErr.Message, pgErr.Code)
	}

	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return book.Record{}, fmt.Errorf("release savepoint: %w", err)
	}
	return out, nil
}

func (t *inventoryTx) ListIncomplete(ctx context.Context) ([]book.Record, error) {
	query, args, err := psql.Select(columns...).From(table).
		Where(sq.Or{
			sq.Expr("COALESCE(isbn, '') = ''"),
			sq.Expr("COALESCE(official_cover_url, '') = ''"),
		}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build incomplete query: %w", err)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incomplete: %w", err)
	}
	return collectRecords(rows)
}

// FillMissing only writes columns that are still empty; populated values are never overwritten.
func (t *inventoryTx) FillMissing(ctx context.Context, id int64, patch book.Metadata) (bool, error) {
	upd := psql.Update(table)
	var empties sq.Or
	for _, f := range []struct {
		col, val string
	}{
		{"isbn", patch.ISBN},
		{"official_cover_url", patch.CoverImageURL},
		{"description", patch.Description},
		{"published_date", patch.PublishedDate},
	} {
		if f.val == "" {
			continue
		}
		upd = upd.Set(f.col, sq.Expr(fmt.Sprintf("COALESCE(NULLIF(%s, ''), ?)", f.col), f.val))
		empties = append(empties, sq.Expr(fmt.Sprintf("COALESCE(%s, '') = ''", f.col)))
	}
	if len(empties) == 0 {
		return false, nil
	}

	query, args, err := upd.Where(sq.And{sq.Eq{"id": id}, empties}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build fill query: %w", err)
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("fill record %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *inventoryTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit inventory tx: %w", err)
	}
	return nil
}

func (t *inventoryTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback inventory tx: %w", err)
	}
	return nil
}

func collectRecords(rows pgx.Rows) ([]book.Record, error) {
	defer rows.Close()
	var out []book.Record
	for rows.Next() {
		var r book.Record
		if err := rows.Scan(
			&r.ID,
			&r.Title,
			&r.Author,
			&r.Publisher,
			&r.ImageURL,
			&r.Description,
			&r.ISBN,
			&r.PublishedDate,
			&r.OfficialCoverURL,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory rows: %w", err)
	}
	return out, nil
}
