package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the client-server driver on a pgx pool.
type Postgres struct {
	dsn      string
	maxConns int32
	minConns int32
	pool     *pgxpool.Pool
}

func NewPostgres(dsn string, maxConns, minConns int32) *Postgres {
	return &Postgres{dsn: dsn, maxConns: maxConns, minConns: minConns}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Connect(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	cfg, err := pgxpool.ParseConfig(p.dsn)
	if err != nil {
		return fmt.Errorf("parsing DSN: %w", err)
	}
	cfg.MaxConns = p.maxConns
	cfg.MinConns = p.minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging database: %w", err)
	}
	p.pool = pool
	return nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("postgres: not connected")
	}
	return p.pool.Ping(ctx)
}

func (p *Postgres) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *Postgres) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows}, nil
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTx{tx}, nil
}

func (p *Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (p *Postgres) UpsertTemplate(table string, columns, key []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = p.QuoteIdentifier(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	keyQuoted := make([]string, len(key))
	keySet := make(map[string]bool, len(key))
	for i, k := range key {
		keyQuoted[i] = p.QuoteIdentifier(k)
		keySet[k] = true
	}
	var updates []string
	for _, c := range columns {
		if keySet[c] {
			continue
		}
		q := p.QuoteIdentifier(c)
		updates = append(updates, q+" = EXCLUDED."+q)
	}
	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		p.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "),
		strings.Join(keyQuoted, ", "),
		conflict)
}

// BulkExec pipelines the rows through one pgx batch inside a
// transaction; all rows land or none do.
func (p *Postgres) BulkExec(ctx context.Context, sql string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(sql, args...)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			tx.Rollback(ctx)
			return err
		}
	}
	if err := br.Close(); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type pgxRows struct {
	rows pgx.Rows
}

func (r pgxRows) Next() bool             { return r.rows.Next() }
func (r pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r pgxRows) Err() error             { return r.rows.Err() }
func (r pgxRows) Close()                 { r.rows.Close() }

type pgxTx struct {
	tx pgx.Tx
}

func (t pgxTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return err
}
func (t pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
