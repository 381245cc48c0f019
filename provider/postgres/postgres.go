// Package postgres keeps snapshots in a key/value table:
//
//	CREATE TABLE IF NOT EXISTS page_state (
//	    key        TEXT PRIMARY KEY,
//	    value      BYTEA NOT NULL,
//	    expires_at TIMESTAMPTZ
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	pr "github.com/unkn0wn-root/pagestate/provider"
)

const defaultTable = "page_state"

var (
	ErrNilDB        = errors.New("postgres provider: nil db")
	ErrInvalidTable = errors.New("postgres provider: invalid table name")

	tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

// DB is the subset of *pgxpool.Pool / *pgx.Conn used by the provider.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db    DB
	close func()
	table string

	getSQL, setSQL, delSQL string
}

var _ pr.Provider = (*Postgres)(nil)

type Config struct {
	DB    DB
	Table string // 0 => "page_state"
	// Close is called by Close, e.g. pool.Close when the provider owns the pool.
	Close func()
}

func New(cfg Config) (*Postgres, error) {
	if cfg.DB == nil {
		return nil, ErrNilDB
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &Postgres{
		db:     cfg.DB,
		close:  cfg.Close,
		table:  table,
		getSQL: "SELECT value FROM " + table + " WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())",
		setSQL: "INSERT INTO " + table + " (key, value, expires_at) VALUES ($1, $2, $3) " +
			"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at",
		delSQL: "DELETE FROM " + table + " WHERE key = $1",
	}, nil
}

// EnsureTable creates the backing table when missing.
func (p *Postgres) EnsureTable(ctx context.Context) error {
	_, err := p.db.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+p.table+
		" (key TEXT PRIMARY KEY, value BYTEA NOT NULL, expires_at TIMESTAMPTZ)")
	return err
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var b []byte
	err := p.db.QueryRow(ctx, p.getSQL, key).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	if _, err := p.db.Exec(ctx, p.setSQL, key, value, expires); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Postgres) Del(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx, p.delSQL, key)
	return err
}

func (p *Postgres) Close(context.Context) error {
	if p.close != nil {
		p.close()
		p.close = nil
	}
	return nil
}
