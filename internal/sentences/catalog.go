package sentences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

// Snapshot bundles everything derived from one language's template file:
// the matchable corpus, the vocabulary inside it, and the file-level
// settings. Snapshots are immutable; a reload installs a new one while
// sessions already holding the old pointer finish against it.
type Snapshot struct {
	Language    string
	Casing      textnorm.Casing
	Corpus      *Corpus
	UnknownText string

	fingerprint string
	size        int64
	modTime     time.Time
}

// Fingerprint identifies the exact template content and casing this
// snapshot was built from.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

const (
	snapshotCacheSize = 8
	matchCacheSize    = 1024
)

// Catalog hands out per-language snapshots, rebuilding them when the
// template file changes on disk. Builds go through the per-language SQLite
// database: when the stored fingerprint still matches, the corpus is
// restored from it instead of re-expanded.
type Catalog struct {
	dir      string
	dbDir    string
	maxDepth int
	logger   *slog.Logger

	mu        sync.Mutex // serializes snapshot builds
	snapshots *lru.Cache[string, *Snapshot]
	matches   *lru.Cache[string, Result]
}

// NewCatalog creates a catalog over a sentences directory. databaseDir
// defaults to dir when empty.
func NewCatalog(dir, databaseDir string, logger *slog.Logger) (*Catalog, error) {
	if dir == "" {
		return nil, errors.New("sentences: sentences directory is required")
	}
	if databaseDir == "" {
		databaseDir = dir
	}
	snapshots, err := lru.New[string, *Snapshot](snapshotCacheSize)
	if err != nil {
		return nil, err
	}
	matches, err := lru.New[string, Result](matchCacheSize)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		dir:       dir,
		dbDir:     databaseDir,
		maxDepth:  0, // expander default
		logger:    logger.With("component", "sentences"),
		snapshots: snapshots,
		matches:   matches,
	}, nil
}

// Load returns the snapshot for a language, building or restoring it as
// needed. Freshness is a cheap size+mtime compare against the file, so
// editing a template file takes effect on the next session without a
// restart.
func (c *Catalog) Load(ctx context.Context, language string, casing textnorm.Casing) (*Snapshot, error) {
	if snap, ok := c.current(language, casing); ok {
		return snap, nil
	}
	return c.build(ctx, language, casing)
}

func (c *Catalog) current(language string, casing textnorm.Casing) (*Snapshot, bool) {
	snap, ok := c.snapshots.Get(language)
	if !ok || snap.Casing != casing {
		return nil, false
	}
	info, err := os.Stat(SourcePath(c.dir, language))
	if err != nil || info.Size() != snap.size || !info.ModTime().Equal(snap.modTime) {
		return nil, false
	}
	return snap, true
}

func (c *Catalog) build(ctx context.Context, language string, casing textnorm.Casing) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another session may have finished the same build while we waited.
	if snap, ok := c.current(language, casing); ok {
		return snap, nil
	}

	src, err := ReadSource(c.dir, language)
	if err != nil {
		return c.keepStale(language, casing, err)
	}
	fingerprint := src.Hash + ":" + string(casing)

	var store *Store
	if store, err = OpenStore(ctx, c.DatabasePath(language)); err != nil {
		// The database is an optimization; keep going without it.
		c.logger.Warn("corpus database unavailable", "language", language, "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	corpus := c.restore(ctx, store, language, casing, fingerprint)
	if corpus == nil {
		started := time.Now()
		corpus, err = BuildCorpus(src.Grammar, casing, c.maxDepth)
		if err != nil {
			return c.keepStale(language, casing, fmt.Errorf("sentences: expand %s: %w", src.Path, err))
		}
		c.logger.Info("expanded sentence templates",
			"language", language,
			"sentences", corpus.Len(),
			"words", corpus.Vocab.Len(),
			"duration", time.Since(started),
		)
		for _, conflict := range corpus.Conflicts {
			c.logger.Warn("same input maps to different outputs, keeping the first",
				"language", language,
				"input", conflict.In,
				"kept", conflict.Kept,
				"discarded", conflict.Discarded,
			)
		}
		if store != nil {
			if err := store.WriteCorpus(ctx, fingerprint, corpus.Entries, corpus.Vocab.Words()); err != nil {
				c.logger.Warn("persisting corpus failed", "language", language, "error", err)
			}
		}
	}

	snap := &Snapshot{
		Language:    language,
		Casing:      casing,
		Corpus:      corpus,
		UnknownText: src.UnknownText,
		fingerprint: fingerprint,
		size:        src.Size,
		modTime:     src.ModTime,
	}
	c.snapshots.Add(language, snap)
	return snap, nil
}

// keepStale resolves a failed rebuild: when an older snapshot for the same
// language and casing is still cached, it stays active and the error is only
// logged. Sessions keep matching against the last corpus that loaded cleanly
// until the template file is fixed.
func (c *Catalog) keepStale(language string, casing textnorm.Casing, cause error) (*Snapshot, error) {
	snap, ok := c.snapshots.Get(language)
	if !ok || snap.Casing != casing {
		return nil, cause
	}
	c.logger.Warn("reloading templates failed, keeping previous snapshot",
		"language", language,
		"error", cause,
	)
	return snap, nil
}

// restore tries the database fast path; nil means the caller must expand.
func (c *Catalog) restore(ctx context.Context, store *Store, language string, casing textnorm.Casing, fingerprint string) *Corpus {
	if store == nil {
		return nil
	}
	stored, err := store.Fingerprint(ctx)
	if err != nil {
		c.logger.Warn("reading corpus fingerprint failed", "language", language, "error", err)
		return nil
	}
	if stored != fingerprint {
		return nil
	}
	entries, words, err := store.ReadCorpus(ctx)
	if err != nil {
		c.logger.Warn("restoring corpus failed", "language", language, "error", err)
		return nil
	}
	corpus := RestoreCorpus(language, casing, entries, words)
	c.logger.Debug("restored corpus from database",
		"language", language,
		"sentences", corpus.Len(),
	)
	return corpus
}

// Match scores raw text against a snapshot with a bounded memo so repeated
// utterances skip the full corpus scan. The memo key includes the snapshot
// fingerprint, so entries from older template versions can never be served.
func (c *Catalog) Match(snap *Snapshot, raw string, cutoff int) Result {
	key := fmt.Sprintf("%s|%d|%s", snap.fingerprint, cutoff, raw)
	if r, ok := c.matches.Get(key); ok {
		return r
	}
	r := snap.Corpus.Match(raw, cutoff)
	c.matches.Add(key, r)
	return r
}

// DatabasePath returns the corpus database location for a language.
func (c *Catalog) DatabasePath(language string) string {
	return filepath.Join(c.dbDir, language+".db")
}
