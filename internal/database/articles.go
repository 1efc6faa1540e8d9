package database

import (
	"database/sql"
	"strings"
)

// InsertArticle inserts an article. Returns false if an article with the same
// (source_id, content_hash) already exists.
func (db *DB) InsertArticle(a Article) (bool, error) {
	result, err := db.conn.Exec(
		`INSERT INTO articles
		(id, source_id, url, canonical_url, title, snippet, full_text, language,
		 published_at, fetched_at, content_hash, cluster_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, content_hash) DO NOTHING`,
		a.ID, a.SourceID, a.URL, a.CanonicalURL, a.Title, a.Snippet, a.FullText,
		a.Language, formatTime(a.PublishedAt), formatTime(a.FetchedAt),
		a.ContentHash, a.ClusterID,
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

// GetArticleByID returns a single article by ID, or nil if absent.
func (db *DB) GetArticleByID(articleID string) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT id, source_id, url, canonical_url, title, snippet, full_text,
		 language, published_at, fetched_at, content_hash, cluster_id
		 FROM articles WHERE id = ?`, articleID,
	)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetArticleCluster records the cluster assignment for an article.
// The write is guarded so an already-assigned article is never reassigned.
func (db *DB) SetArticleCluster(articleID, clusterID string) error {
	_, err := db.conn.Exec(
		"UPDATE articles SET cluster_id = ? WHERE id = ? AND cluster_id IS NULL",
		clusterID, articleID,
	)
	return err
}

// GetClusterArticles returns the articles assigned to a cluster, newest first.
func (db *DB) GetClusterArticles(clusterID string) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, url, canonical_url, title, snippet, full_text,
		 language, published_at, fetched_at, content_hash, cluster_id
		 FROM articles WHERE cluster_id = ? ORDER BY published_at DESC`, clusterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetArticlesNeedingFetch returns articles with no full text where no fetch
// has been attempted yet.
func (db *DB) GetArticlesNeedingFetch(limit int) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, url, canonical_url, title, snippet, full_text,
		 language, published_at, fetched_at, content_hash, cluster_id
		 FROM articles
		 WHERE (full_text IS NULL OR full_text = '') AND fetch_attempted = 0
		 ORDER BY published_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// UpdateArticleFullText stores extracted full text for an article.
func (db *DB) UpdateArticleFullText(articleID string, fullText *string) error {
	_, err := db.conn.Exec(
		"UPDATE articles SET full_text = ?, fetch_attempted = 1 WHERE id = ?",
		fullText, articleID,
	)
	return err
}

// MarkArticleFetchAttempted marks that we tried to fetch full text.
func (db *DB) MarkArticleFetchAttempted(articleID string) error {
	_, err := db.conn.Exec(
		"UPDATE articles SET fetch_attempted = 1 WHERE id = ?", articleID,
	)
	return err
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		var a Article
		var published, fetched string
		if err := rows.Scan(&a.ID, &a.SourceID, &a.URL, &a.CanonicalURL, &a.Title,
			&a.Snippet, &a.FullText, &a.Language, &published, &fetched,
			&a.ContentHash, &a.ClusterID); err != nil {
			return nil, err
		}
		a.PublishedAt = parseTime(published)
		a.FetchedAt = parseTime(fetched)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanArticle(row *sql.Row) (*Article, error) {
	var a Article
	var published, fetched string
	if err := row.Scan(&a.ID, &a.SourceID, &a.URL, &a.CanonicalURL, &a.Title,
		&a.Snippet, &a.FullText, &a.Language, &published, &fetched,
		&a.ContentHash, &a.ClusterID); err != nil {
		return nil, err
	}
	a.PublishedAt = parseTime(published)
	a.FetchedAt = parseTime(fetched)
	return &a, nil
}

// Fingerprint normalizes title and snippet text into the display fingerprint
// stored on clusters: lower-cased, punctuation stripped, capped at 280 chars.
func Fingerprint(title, snippet string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title + " " + snippet) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r > 127: // keep non-ASCII letters
			b.WriteRune(r)
		}
	}
	fp := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(fp); len(runes) > 280 {
		fp = string(runes[:280])
	}
	return fp
}
