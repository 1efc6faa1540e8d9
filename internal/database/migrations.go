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
CREATE TABLE IF NOT EXISTS articles (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    url TEXT NOT NULL,
    canonical_url TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL,
    snippet TEXT NOT NULL DEFAULT '',
    full_text TEXT,
    language TEXT NOT NULL DEFAULT 'en',
    published_at TEXT NOT NULL,
    fetched_at TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    fetch_attempted INTEGER DEFAULT 0,
    cluster_id TEXT,
    UNIQUE(source_id, content_hash)
);

CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    seed_article_id TEXT NOT NULL,
    rep_article_id TEXT NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    first_seen TEXT NOT NULL,
    last_seen TEXT NOT NULL,
    size INTEGER DEFAULT 1
);

CREATE TABLE IF NOT EXISTS cluster_updates (
    cluster_id TEXT NOT NULL REFERENCES clusters(id),
    article_id TEXT NOT NULL,
    happened_at TEXT NOT NULL,
    stance TEXT CHECK(stance IN ('supports', 'contradicts', 'neutral')),
    claim TEXT NOT NULL DEFAULT '',
    evidence TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    source_id TEXT NOT NULL DEFAULT '',
    lang TEXT NOT NULL DEFAULT 'en',
    PRIMARY KEY (cluster_id, article_id)
);

CREATE TABLE IF NOT EXISTS cluster_ai (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cluster_id TEXT NOT NULL REFERENCES clusters(id),
    lang TEXT NOT NULL,
    ai_title TEXT NOT NULL DEFAULT '',
    ai_summary TEXT NOT NULL DEFAULT '',
    ai_details TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    pivot_hash TEXT,
    is_current INTEGER DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS translation_cache (
    key TEXT PRIMARY KEY,
    src_lang TEXT NOT NULL,
    dst_lang TEXT NOT NULL,
    text TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_cluster ON articles(cluster_id);
CREATE INDEX IF NOT EXISTS idx_cluster_updates_cluster ON cluster_updates(cluster_id);
CREATE INDEX IF NOT EXISTS idx_cluster_ai_lookup ON cluster_ai(cluster_id, lang, is_current);
CREATE INDEX IF NOT EXISTS idx_clusters_last_seen ON clusters(last_seen);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cluster_ai_one_current
    ON cluster_ai(cluster_id, lang) WHERE is_current = 1;
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
