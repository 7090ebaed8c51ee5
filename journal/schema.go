// journal/schema.go
package journal

const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	ts_ms INTEGER NOT NULL,
	asset TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	nav_before REAL NOT NULL,
	nav_after REAL NOT NULL,
	position_size_fraction REAL NOT NULL,
	ai_recommendation TEXT NOT NULL,
	ai_confidence REAL NOT NULL,
	ai_reason TEXT NOT NULL,
	model_version TEXT NOT NULL,
	regime TEXT NOT NULL,
	stop_loss REAL,
	take_profit REAL,
	source TEXT NOT NULL,
	mode TEXT NOT NULL,
	trade_ref TEXT NOT NULL,
	notes TEXT NOT NULL,
	correlation_cluster TEXT NOT NULL,
	created_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_ms);
CREATE INDEX IF NOT EXISTS idx_trades_asset_ts ON trades(asset, ts_ms);
`

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	ts_ms BIGINT NOT NULL,
	asset TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	nav_before DOUBLE PRECISION NOT NULL,
	nav_after DOUBLE PRECISION NOT NULL,
	position_size_fraction DOUBLE PRECISION NOT NULL,
	ai_recommendation TEXT NOT NULL,
	ai_confidence DOUBLE PRECISION NOT NULL,
	ai_reason TEXT NOT NULL,
	model_version TEXT NOT NULL,
	regime TEXT NOT NULL,
	stop_loss DOUBLE PRECISION,
	take_profit DOUBLE PRECISION,
	source TEXT NOT NULL,
	mode TEXT NOT NULL,
	trade_ref TEXT NOT NULL,
	notes TEXT NOT NULL,
	correlation_cluster TEXT NOT NULL,
	created_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_ms);
CREATE INDEX IF NOT EXISTS idx_trades_asset_ts ON trades(asset, ts_ms);
`
