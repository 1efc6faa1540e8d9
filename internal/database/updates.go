package database

import "database/sql"

// InsertClusterUpdate appends a timeline entry. Returns false when an entry
// for the same (cluster, article) already exists; duplicates are an expected
// race, not an error.
func (db *DB) InsertClusterUpdate(u ClusterUpdate) (bool, error) {
	result, err := db.conn.Exec(
		`INSERT INTO cluster_updates
		(cluster_id, article_id, happened_at, stance, claim, evidence, summary, source_id, lang)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cluster_id, article_id) DO NOTHING`,
		u.ClusterID, u.ArticleID, formatTime(u.HappenedAt), u.Stance,
		u.Claim, u.Evidence, u.Summary, u.SourceID, u.Lang,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetRecentUpdates returns the newest n timeline entries for a cluster,
// ordered by happened_at DESC.
func (db *DB) GetRecentUpdates(clusterID string, n int) ([]ClusterUpdate, error) {
	rows, err := db.conn.Query(
		`SELECT cluster_id, article_id, happened_at, stance, claim, evidence, summary, source_id, lang
		FROM cluster_updates WHERE cluster_id = ?
		ORDER BY happened_at DESC LIMIT ?`, clusterID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUpdates(rows)
}

// GetClusterUpdates returns all timeline entries for a cluster, oldest first.
func (db *DB) GetClusterUpdates(clusterID string) ([]ClusterUpdate, error) {
	rows, err := db.conn.Query(
		`SELECT cluster_id, article_id, happened_at, stance, claim, evidence, summary, source_id, lang
		FROM cluster_updates WHERE cluster_id = ?
		ORDER BY happened_at ASC`, clusterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUpdates(rows)
}

func scanUpdates(rows *sql.Rows) ([]ClusterUpdate, error) {
	var updates []ClusterUpdate
	for rows.Next() {
		var u ClusterUpdate
		var happened string
		if err := rows.Scan(&u.ClusterID, &u.ArticleID, &happened, &u.Stance,
			&u.Claim, &u.Evidence, &u.Summary, &u.SourceID, &u.Lang); err != nil {
			return nil, err
		}
		u.HappenedAt = parseTime(happened)
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
