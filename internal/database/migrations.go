package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS price_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT UNIQUE NOT NULL,
    price_base REAL NOT NULL,
    price_derived REAL,
    change_fraction REAL DEFAULT 0,
    sentiment TEXT,
    trend TEXT,
    forecast_summary TEXT,
    forecast_data TEXT,
    source TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS news_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    url TEXT UNIQUE NOT NULL,
    summary TEXT,
    analysis TEXT,
    category TEXT NOT NULL,
    sentiment TEXT,
    source TEXT,
    published_date TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cycle_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id TEXT UNIQUE NOT NULL,
    kind TEXT NOT NULL,
    triggered_by TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    price_saved INTEGER DEFAULT 0,
    news_saved INTEGER DEFAULT 0,
    news_skipped INTEGER DEFAULT 0,
    errors INTEGER DEFAULT 0,
    summary TEXT
);

CREATE INDEX IF NOT EXISTS idx_price_snapshots_date ON price_snapshots(date);
CREATE INDEX IF NOT EXISTS idx_news_items_category ON news_items(category, created_at);
CREATE INDEX IF NOT EXISTS idx_news_items_created ON news_items(created_at);
CREATE INDEX IF NOT EXISTS idx_cycle_reports_started ON cycle_reports(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
