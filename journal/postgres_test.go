package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresDB(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func columnNames() []string {
	cols := strings.Split(tradeColumns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func rowValues(t *testing.T, tr Trade) []driver.Value {
	t.Helper()

	r, err := toRow(tr)
	require.NoError(t, err)
	args := r.args()
	vals := make([]driver.Value, len(args))
	for i, a := range args {
		vals[i] = a
	}
	// sqlmock rows carry driver values, not Valuers
	for i, v := range vals {
		if n, ok := v.(sql.NullFloat64); ok {
			if n.Valid {
				vals[i] = n.Float64
			} else {
				vals[i] = nil
			}
		}
	}
	return vals
}

func TestPostgresMigrate(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS trades")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecord(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	tr := sampleTrades()[0]

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trades")).
		WithArgs(rowValues(t, tr)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	got, err := p.Record(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, "T1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordDuplicate(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trades")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

	_, err := p.Record(context.Background(), sampleTrades()[1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	tr := sampleTrades()[0]

	mock.ExpectQuery(regexp.QuoteMeta("FROM trades WHERE id = $1")).
		WithArgs("T1").
		WillReturnRows(sqlmock.NewRows(columnNames()).AddRow(rowValues(t, tr)...))

	got, err := p.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, tr.Asset, got.Asset)
	require.NotNil(t, got.StopLoss)
	assert.Equal(t, 63000.0, *got.StopLoss)

	mock.ExpectQuery(regexp.QuoteMeta("FROM trades WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err = p.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	trades := sampleTrades()

	rows := sqlmock.NewRows(columnNames()).
		AddRow(rowValues(t, trades[0])...).
		AddRow(rowValues(t, trades[2])...)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE asset = $1 AND action ILIKE $2")).
		WithArgs("BTCUSDT", "%AUTO%").
		WillReturnRows(rows)

	got, err := p.List(context.Background(), Filter{Asset: "BTCUSDT", Action: "AUTO"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "T3", got[1].ID)
	assert.Nil(t, got[1].StopLoss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSQL(t *testing.T) {
	t.Parallel()

	q, args := postgresDialect.listSQL(Filter{Search: "x", Limit: 5})
	assert.Contains(t, q, "(asset ILIKE $1 OR ai_reason ILIKE $2 OR notes ILIKE $3)")
	assert.Contains(t, q, "LIMIT 5")
	assert.True(t, strings.HasSuffix(q, "ORDER BY ts_ms ASC, id ASC"))
	assert.Equal(t, []any{"%x%", "%x%", "%x%"}, args)

	q, args = sqliteDialect.listSQL(Filter{Mode: "PAPER", From: day})
	assert.Contains(t, q, "WHERE mode = ? AND ts_ms >= ?")
	assert.Equal(t, []any{"PAPER", day.UnixMilli()}, args)

	assert.Equal(t, tradeColumnCount, len(columnNames()))
	assert.Equal(t, 22, strings.Count(postgresDialect.insertSQL(), "$"))
}
