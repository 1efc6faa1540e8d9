package database

import (
	"database/sql"
	"strings"
	"time"
)

// GetCurrentSummaries returns all is_current rows for a cluster, newest first.
func (db *DB) GetCurrentSummaries(clusterID string) ([]ClusterAI, error) {
	rows, err := db.conn.Query(
		`SELECT id, cluster_id, lang, ai_title, ai_summary, ai_details, model,
		 pivot_hash, is_current, created_at
		FROM cluster_ai WHERE cluster_id = ? AND is_current = 1
		ORDER BY created_at DESC`, clusterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// GetCurrentSummary returns the current row for (cluster, lang), or nil.
// Should the one-current invariant ever be violated, the most recently
// created row wins.
func (db *DB) GetCurrentSummary(clusterID, lang string) (*ClusterAI, error) {
	row := db.conn.QueryRow(
		`SELECT id, cluster_id, lang, ai_title, ai_summary, ai_details, model,
		 pivot_hash, is_current, created_at
		FROM cluster_ai WHERE cluster_id = ? AND lang = ? AND is_current = 1
		ORDER BY created_at DESC LIMIT 1`, clusterID, lang,
	)
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ReplaceCurrentSummary retires any current row for (cluster, lang) and
// inserts the given row as the new current one, atomically. Returns (0, nil)
// when a concurrent writer got there first: the partial unique index on
// current rows turns that race into a constraint conflict, which callers
// treat as "already refreshed, skip".
func (db *DB) ReplaceCurrentSummary(s ClusterAI) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE cluster_ai SET is_current = 0 WHERE cluster_id = ? AND lang = ? AND is_current = 1",
		s.ClusterID, s.Lang,
	); err != nil {
		return 0, err
	}

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	result, err := tx.Exec(
		`INSERT INTO cluster_ai
		(cluster_id, lang, ai_title, ai_summary, ai_details, model, pivot_hash, is_current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		s.ClusterID, s.Lang, s.AITitle, s.AISummary, s.AIDetails, s.Model,
		s.PivotHash, formatTime(created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, nil
		}
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetSummaryHistory returns all rows for (cluster, lang), newest first.
func (db *DB) GetSummaryHistory(clusterID, lang string) ([]ClusterAI, error) {
	rows, err := db.conn.Query(
		`SELECT id, cluster_id, lang, ai_title, ai_summary, ai_details, model,
		 pivot_hash, is_current, created_at
		FROM cluster_ai WHERE cluster_id = ? AND lang = ?
		ORDER BY created_at DESC, id DESC`, clusterID, lang,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]ClusterAI, error) {
	var summaries []ClusterAI
	for rows.Next() {
		var s ClusterAI
		var current int
		var created string
		if err := rows.Scan(&s.ID, &s.ClusterID, &s.Lang, &s.AITitle, &s.AISummary,
			&s.AIDetails, &s.Model, &s.PivotHash, &current, &created); err != nil {
			return nil, err
		}
		s.IsCurrent = current != 0
		s.CreatedAt = parseTime(created)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanSummary(row *sql.Row) (*ClusterAI, error) {
	var s ClusterAI
	var current int
	var created string
	if err := row.Scan(&s.ID, &s.ClusterID, &s.Lang, &s.AITitle, &s.AISummary,
		&s.AIDetails, &s.Model, &s.PivotHash, &current, &created); err != nil {
		return nil, err
	}
	s.IsCurrent = current != 0
	s.CreatedAt = parseTime(created)
	return &s, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
