package database

import (
	"database/sql"
	"time"
)

// UpsertCluster inserts a cluster seeded by the given article, or, when the
// cluster already exists, advances last_seen and increments size.
func (db *DB) UpsertCluster(clusterID, seedArticleID, fingerprint string, seen time.Time) error {
	_, err := db.conn.Exec(
		`INSERT INTO clusters (id, seed_article_id, rep_article_id, fingerprint, first_seen, last_seen, size)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			last_seen = max(last_seen, excluded.last_seen),
			size = size + 1`,
		clusterID, seedArticleID, seedArticleID, fingerprint,
		formatTime(seen), formatTime(seen),
	)
	return err
}

// GetCluster returns a cluster by ID, or nil if absent.
func (db *DB) GetCluster(clusterID string) (*Cluster, error) {
	row := db.conn.QueryRow(
		`SELECT id, seed_article_id, rep_article_id, fingerprint, first_seen, last_seen, size
		FROM clusters WHERE id = ?`, clusterID,
	)
	var c Cluster
	var first, last string
	if err := row.Scan(&c.ID, &c.SeedArticleID, &c.RepArticleID, &c.Fingerprint,
		&first, &last, &c.Size); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.FirstSeen = parseTime(first)
	c.LastSeen = parseTime(last)
	return &c, nil
}

// GetRecentClusters returns clusters active since the cutoff, most recently
// seen first. Ties fall back to first_seen, then insertion order.
func (db *DB) GetRecentClusters(since time.Time, limit int) ([]Cluster, error) {
	rows, err := db.conn.Query(
		`SELECT id, seed_article_id, rep_article_id, fingerprint, first_seen, last_seen, size
		FROM clusters WHERE last_seen >= ?
		ORDER BY last_seen DESC, first_seen DESC, rowid DESC
		LIMIT ?`, formatTime(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []Cluster
	for rows.Next() {
		var c Cluster
		var first, last string
		if err := rows.Scan(&c.ID, &c.SeedArticleID, &c.RepArticleID, &c.Fingerprint,
			&first, &last, &c.Size); err != nil {
			return nil, err
		}
		c.FirstSeen = parseTime(first)
		c.LastSeen = parseTime(last)
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}
