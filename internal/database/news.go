package database

import (
	"database/sql"
	"fmt"
	"strings"
)

const newsColumns = `id, title, url, summary, analysis, category, sentiment, source, published_date, created_at`

// InsertNewsIfAbsent stores the item unless its URL is already present.
// The first stored content for a URL wins.
func (db *DB) InsertNewsIfAbsent(item NewsItem) (bool, error) {
	if item.URL == "" {
		return false, fmt.Errorf("news url is required")
	}
	result, err := db.conn.Exec(
		`INSERT OR IGNORE INTO news_items
		(title, url, summary, analysis, category, sentiment, source, published_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Title, item.URL, item.Summary, item.Analysis, item.Category,
		item.Sentiment, item.Source, item.PublishedDate,
	)
	if err != nil {
		return false, fmt.Errorf("inserting news %s: %w", item.URL, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NewsExists reports whether an item with this URL is stored.
func (db *DB) NewsExists(url string) (bool, error) {
	var count int
	if err := db.reader.QueryRow("SELECT COUNT(*) FROM news_items WHERE url = ?", url).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestNewsByCategory returns the most recently stored item for category.
func (db *DB) LatestNewsByCategory(category string) (*NewsItem, error) {
	row := db.reader.QueryRow(
		`SELECT `+newsColumns+` FROM news_items WHERE category = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, category,
	)
	n, err := scanNews(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// RecentNews returns up to limit items, newest first.
func (db *DB) RecentNews(limit int) ([]NewsItem, error) {
	rows, err := db.reader.Query(
		`SELECT `+newsColumns+` FROM news_items ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNewsRows(rows)
}

// SearchNews matches q as a substring of title, summary or analysis.
func (db *DB) SearchNews(q string, limit int) ([]NewsItem, error) {
	pattern := "%" + escapeLike(q) + "%"
	rows, err := db.reader.Query(
		`SELECT `+newsColumns+` FROM news_items
		WHERE title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\' OR analysis LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNewsRows(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanNewsRows(rows *sql.Rows) ([]NewsItem, error) {
	items := []NewsItem{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

func scanNews(sc scanner) (*NewsItem, error) {
	var n NewsItem
	if err := sc.Scan(&n.ID, &n.Title, &n.URL, &n.Summary, &n.Analysis, &n.Category,
		&n.Sentiment, &n.Source, &n.PublishedDate, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
