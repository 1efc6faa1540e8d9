package database

import "database/sql"

// GetTranslation looks up a cached translation by key. Returns nil on miss.
func (db *DB) GetTranslation(key string) (*string, error) {
	row := db.conn.QueryRow("SELECT text FROM translation_cache WHERE key = ?", key)
	var text string
	if err := row.Scan(&text); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &text, nil
}

// PutTranslation stores a translation. Write-once per key: a concurrent
// writer's row is left untouched.
func (db *DB) PutTranslation(key, srcLang, dstLang, text string) error {
	_, err := db.conn.Exec(
		`INSERT INTO translation_cache (key, src_lang, dst_lang, text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		key, srcLang, dstLang, text,
	)
	return err
}
