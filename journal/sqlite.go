package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(SQLiteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(ctx context.Context, t Trade) (Trade, error) {
	t, err := prepare(t)
	if err != nil {
		return Trade{}, err
	}
	row, err := toRow(t)
	if err != nil {
		return Trade{}, fmt.Errorf("record trade: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, sqliteDialect.insertSQL(), row.args()...); err != nil {
		return Trade{}, fmt.Errorf("record trade: %w", err)
	}
	return t, nil
}

// Get returns a single trade by ID.
func (j *SQLite) Get(ctx context.Context, tradeID string) (Trade, error) {
	var r tradeRow
	err := j.db.QueryRowContext(ctx, sqliteDialect.getSQL(), tradeID).Scan(r.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Trade{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return Trade{}, err
	}
	return r.trade()
}

// List returns trades matching f, ascending by timestamp.
func (j *SQLite) List(ctx context.Context, f Filter) ([]Trade, error) {
	q, args := sqliteDialect.listSQL(f)
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var r tradeRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		t, err := r.trade()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
