package database

import (
	"database/sql"
	"fmt"
)

// InsertCycleReport records a finished refresh cycle.
func (db *DB) InsertCycleReport(r CycleReport) (int64, error) {
	saved := 0
	if r.PriceSaved {
		saved = 1
	}
	result, err := db.conn.Exec(
		`INSERT INTO cycle_reports
		(cycle_id, kind, triggered_by, started_at, finished_at, price_saved, news_saved, news_skipped, errors, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, r.Kind, r.TriggeredBy, r.StartedAt, r.FinishedAt, saved,
		r.NewsSaved, r.NewsSkipped, r.Errors, r.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting cycle report %s: %w", r.CycleID, err)
	}
	return result.LastInsertId()
}

// RecentCycleReports returns up to limit reports, newest first.
func (db *DB) RecentCycleReports(limit int) ([]CycleReport, error) {
	rows, err := db.reader.Query(
		`SELECT id, cycle_id, kind, triggered_by, started_at, finished_at, price_saved,
		news_saved, news_skipped, errors, summary
		FROM cycle_reports ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []CycleReport{}
	for rows.Next() {
		var r CycleReport
		var saved int
		var triggeredBy sql.NullString
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Kind, &triggeredBy, &r.StartedAt, &r.FinishedAt,
			&saved, &r.NewsSaved, &r.NewsSkipped, &r.Errors, &r.Summary); err != nil {
			return nil, err
		}
		r.PriceSaved = saved != 0
		r.TriggeredBy = triggeredBy.String
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM price_snapshots", &s.PriceSnapshots},
		{"SELECT COUNT(*) FROM price_snapshots WHERE source = 'fallback'", &s.FallbackSnapshots},
		{"SELECT COUNT(*) FROM news_items", &s.NewsItems},
		{"SELECT COUNT(DISTINCT category) FROM news_items", &s.NewsCategories},
		{"SELECT COUNT(*) FROM cycle_reports", &s.Cycles},
		{"SELECT COUNT(*) FROM cycle_reports WHERE errors > 0", &s.FailedCycles},
	}

	for _, q := range queries {
		if err := db.reader.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var latest sql.NullString
	if err := db.reader.QueryRow("SELECT MAX(date) FROM price_snapshots").Scan(&latest); err != nil {
		return nil, err
	}
	s.LatestPriceDate = latest.String

	return s, nil
}
