package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const snapshotColumns = `id, date, price_base, price_derived, change_fraction, sentiment, trend,
	forecast_summary, forecast_data, source, created_at`

// UpsertPriceSnapshot writes the snapshot for its date, replacing any
// existing row for that date in full.
func (db *DB) UpsertPriceSnapshot(s PriceSnapshot) (int64, error) {
	if s.Date == "" {
		return 0, fmt.Errorf("snapshot date is required")
	}

	var forecastJSON *string
	if s.Forecast != nil {
		data, err := json.Marshal(s.Forecast)
		if err != nil {
			return 0, fmt.Errorf("encoding forecast: %w", err)
		}
		str := string(data)
		forecastJSON = &str
	}

	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO price_snapshots
		(date, price_base, price_derived, change_fraction, sentiment, trend, forecast_summary, forecast_data, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Date, s.PriceBase, s.PriceDerived, s.ChangeFraction, s.Sentiment, s.Trend,
		s.ForecastSummary, forecastJSON, s.Source,
	)
	if err != nil {
		return 0, fmt.Errorf("upserting snapshot %s: %w", s.Date, err)
	}
	return result.LastInsertId()
}

// LatestPriceSnapshot returns the snapshot with the most recent date.
func (db *DB) LatestPriceSnapshot() (*PriceSnapshot, error) {
	row := db.reader.QueryRow(
		`SELECT ` + snapshotColumns + ` FROM price_snapshots ORDER BY date DESC LIMIT 1`,
	)
	return scanSnapshotRow(row)
}

// PreviousPriceSnapshot returns the latest snapshot dated strictly before date.
func (db *DB) PreviousPriceSnapshot(date string) (*PriceSnapshot, error) {
	row := db.reader.QueryRow(
		`SELECT `+snapshotColumns+` FROM price_snapshots WHERE date < ? ORDER BY date DESC LIMIT 1`,
		date,
	)
	return scanSnapshotRow(row)
}

// GetPriceSnapshot returns the snapshot for a date.
func (db *DB) GetPriceSnapshot(date string) (*PriceSnapshot, error) {
	row := db.reader.QueryRow(
		`SELECT `+snapshotColumns+` FROM price_snapshots WHERE date = ?`, date,
	)
	return scanSnapshotRow(row)
}

// PriceHistory returns up to limit snapshots, newest first.
func (db *DB) PriceHistory(limit int) ([]PriceSnapshot, error) {
	rows, err := db.reader.Query(
		`SELECT `+snapshotColumns+` FROM price_snapshots ORDER BY date DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []PriceSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshotRow(row *sql.Row) (*PriceSnapshot, error) {
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanSnapshot(sc scanner) (*PriceSnapshot, error) {
	var s PriceSnapshot
	var forecastJSON *string
	if err := sc.Scan(&s.ID, &s.Date, &s.PriceBase, &s.PriceDerived, &s.ChangeFraction,
		&s.Sentiment, &s.Trend, &s.ForecastSummary, &forecastJSON, &s.Source, &s.CreatedAt); err != nil {
		return nil, err
	}
	if forecastJSON != nil && *forecastJSON != "" {
		var fd ForecastData
		if err := json.Unmarshal([]byte(*forecastJSON), &fd); err != nil {
			return nil, fmt.Errorf("decoding forecast for %s: %w", s.Date, err)
		}
		s.Forecast = &fd
	}
	return &s, nil
}
