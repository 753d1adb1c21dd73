package journal

const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	position_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity TEXT NOT NULL,
	leverage INTEGER NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	margin TEXT NOT NULL,
	fee TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	status TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_close_time ON positions(close_time);

CREATE TABLE IF NOT EXISTS account (
	time DATETIME NOT NULL,
	balance TEXT NOT NULL,
	available TEXT NOT NULL,
	margin_used TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_account_time ON account(time);
`
