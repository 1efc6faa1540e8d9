package database

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM articles", &s.Articles},
		{"SELECT COUNT(*) FROM articles WHERE cluster_id IS NOT NULL", &s.AssignedArticles},
		{"SELECT COUNT(*) FROM clusters", &s.Clusters},
		{"SELECT COUNT(*) FROM cluster_updates", &s.TimelineEntries},
		{"SELECT COUNT(*) FROM cluster_ai WHERE is_current = 1", &s.CurrentSummaries},
		{"SELECT COUNT(DISTINCT lang) FROM cluster_ai WHERE is_current = 1", &s.Languages},
		{"SELECT COUNT(*) FROM translation_cache", &s.CachedTranslations},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
