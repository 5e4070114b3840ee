package sentences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists one language's compiled corpus in a SQLite database so a
// process restart (or another tool) can reuse the expansion instead of
// redoing it. The stored fingerprint ties the rows to the exact template
// file content and casing that produced them.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sentences (
	id     INTEGER PRIMARY KEY,
	input  TEXT NOT NULL,
	output TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS words (
	word TEXT PRIMARY KEY
);
`

// OpenStore opens (creating if needed) the corpus database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sentences: open database %s: %w", path, err)
	}
	// A corpus database has exactly one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sentences: init database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint returns the stored corpus fingerprint, or "" when the database
// is fresh.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'fingerprint'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sentences: read fingerprint: %w", err)
	}
	return value, nil
}

// ReadCorpus loads the persisted entries (in expansion order) and the
// distinct word list.
func (s *Store) ReadCorpus(ctx context.Context) ([]Entry, []string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT input, output FROM sentences ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("sentences: read sentences: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.In, &e.Out); err != nil {
			return nil, nil, fmt.Errorf("sentences: scan sentence: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sentences: read sentences: %w", err)
	}

	wordRows, err := s.db.QueryContext(ctx, `SELECT word FROM words ORDER BY word`)
	if err != nil {
		return nil, nil, fmt.Errorf("sentences: read words: %w", err)
	}
	defer wordRows.Close()

	var words []string
	for wordRows.Next() {
		var w string
		if err := wordRows.Scan(&w); err != nil {
			return nil, nil, fmt.Errorf("sentences: scan word: %w", err)
		}
		words = append(words, w)
	}
	if err := wordRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sentences: read words: %w", err)
	}
	return entries, words, nil
}

// WriteCorpus replaces the stored corpus in a single transaction.
func (s *Store) WriteCorpus(ctx context.Context, fingerprint string, entries []Entry, words []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sentences: begin write: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM sentences`, `DELETE FROM words`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sentences: clear corpus: %w", err)
		}
	}

	insertSentence, err := tx.PrepareContext(ctx, `INSERT INTO sentences (id, input, output) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sentences: prepare insert: %w", err)
	}
	defer insertSentence.Close()
	for i, e := range entries {
		if _, err := insertSentence.ExecContext(ctx, i+1, e.In, e.Out); err != nil {
			return fmt.Errorf("sentences: insert sentence: %w", err)
		}
	}

	insertWord, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO words (word) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("sentences: prepare insert: %w", err)
	}
	defer insertWord.Close()
	for _, w := range words {
		if _, err := insertWord.ExecContext(ctx, w); err != nil {
			return fmt.Errorf("sentences: insert word: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('fingerprint', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, fingerprint); err != nil {
		return fmt.Errorf("sentences: store fingerprint: %w", err)
	}
	return tx.Commit()
}
