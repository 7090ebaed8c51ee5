package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres connects to dsn and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	p := NewPostgresDB(db, 10*time.Second)
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresDB wraps an open handle. Every call is bounded by timeout.
func NewPostgresDB(db *sqlx.DB, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Postgres{db: db, timeout: timeout}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("migrate trades: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, t Trade) (Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	t, err := prepare(t)
	if err != nil {
		return Trade{}, err
	}
	row, err := toRow(t)
	if err != nil {
		return Trade{}, fmt.Errorf("record trade: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, postgresDialect.insertSQL(), row.args()...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return Trade{}, fmt.Errorf("record trade: duplicate id %q: %w", t.ID, err)
		}
		return Trade{}, fmt.Errorf("record trade: %w", err)
	}
	return t, nil
}

func (p *Postgres) Get(ctx context.Context, tradeID string) (Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var r tradeRow
	if err := p.db.GetContext(ctx, &r, postgresDialect.getSQL(), tradeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Trade{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return Trade{}, fmt.Errorf("get trade: %w", err)
	}
	return r.trade()
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q, args := postgresDialect.listSQL(f)
	var rows []tradeRow
	if err := p.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	out := make([]Trade, 0, len(rows))
	for _, r := range rows {
		t, err := r.trade()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
