package sentences_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/wirgen/wyoming-vosk/internal/sentences"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTemplates(t *testing.T, dir, language, content string) string {
	t.Helper()
	path := sentences.SourcePath(dir, language)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCatalogLoadAndMatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTemplates(t, dir, "en", sampleTemplates)

	catalog, err := sentences.NewCatalog(dir, "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	snap, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Language != "en" || snap.Corpus.Len() == 0 {
		t.Fatalf("snapshot = %+v, want a populated corpus", snap)
	}
	if snap.UnknownText != "unrecognized" {
		t.Errorf("unknown text = %q, want %q", snap.UnknownText, "unrecognized")
	}

	r := catalog.Match(snap, "lumos", 0)
	if !r.Accepted || r.Text != "turn on all the lights" {
		t.Errorf("Match() = %+v, want acceptance", r)
	}
	// Second call serves the memoized result.
	if again := catalog.Match(snap, "lumos", 0); again != r {
		t.Errorf("repeated Match() = %+v, want %+v", again, r)
	}

	// The same snapshot comes back while the file is unchanged.
	again, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if again != snap {
		t.Error("unchanged template was rebuilt")
	}
}

func TestCatalogWritesDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTemplates(t, dir, "en", sampleTemplates)

	catalog, err := sentences.NewCatalog(dir, "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	if _, err := catalog.Load(ctx, "en", textnorm.CasingCasefold); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	store, err := sentences.OpenStore(ctx, catalog.DatabasePath("en"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()
	entries, words, err := store.ReadCorpus(ctx)
	if err != nil {
		t.Fatalf("ReadCorpus() error = %v", err)
	}
	if len(entries) == 0 || len(words) == 0 {
		t.Errorf("database holds %d entries and %d words, want both populated", len(entries), len(words))
	}
}

func TestCatalogRestoresFromDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTemplates(t, dir, "en", sampleTemplates)

	catalog, err := sentences.NewCatalog(dir, "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	// Seed the database under the exact fingerprint the catalog will
	// compute; a sentinel entry proves the corpus came from the database
	// rather than a fresh expansion.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:]) + ":" + string(textnorm.CasingCasefold)

	store, err := sentences.OpenStore(ctx, catalog.DatabasePath("en"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	sentinel := []sentences.Entry{{In: "sentinel phrase", Out: "sentinel output"}}
	if err := store.WriteCorpus(ctx, fingerprint, sentinel, []string{"phrase", "sentinel"}); err != nil {
		t.Fatalf("WriteCorpus() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	snap, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Corpus.Len() != 1 || snap.Corpus.Entries[0].In != "sentinel phrase" {
		t.Errorf("corpus = %+v, want the database contents", snap.Corpus.Entries)
	}
}

func TestCatalogRebuildsOnChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTemplates(t, dir, "en", "sentences:\n  - old sentence\n")

	catalog, err := sentences.NewCatalog(dir, "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	snap, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r := catalog.Match(snap, "old sentence", 0); !r.Accepted {
		t.Fatalf("Match() = %+v, want acceptance", r)
	}

	writeTemplates(t, dir, "en", "sentences:\n  - brand new sentence\n")
	// Coarse filesystem timestamps could hide the rewrite from the stat
	// check; force a visibly newer mtime.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	snap, err = catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() after rewrite error = %v", err)
	}
	if r := catalog.Match(snap, "brand new sentence", 0); !r.Accepted {
		t.Errorf("Match() = %+v, want the rewritten templates", r)
	}
	if r := catalog.Match(snap, "old sentence", 0); r.Accepted {
		t.Errorf("Match() = %+v, old sentence still accepted after rewrite", r)
	}
}

func TestCatalogKeepsSnapshotOnBrokenReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTemplates(t, dir, "en", "sentences:\n  - good sentence\n")

	catalog, err := sentences.NewCatalog(dir, "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	snap, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Simulate a bad edit: the file no longer parses.
	writeTemplates(t, dir, "en", "sentences: [broken\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	kept, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() after bad edit error = %v, want the previous snapshot", err)
	}
	if kept != snap {
		t.Error("bad edit replaced the snapshot instead of keeping the previous one")
	}
	if r := catalog.Match(kept, "good sentence", 0); !r.Accepted {
		t.Errorf("Match() = %+v, want the previous corpus to stay live", r)
	}

	// Fixing the file resumes normal rebuilds.
	writeTemplates(t, dir, "en", "sentences:\n  - fixed sentence\n")
	if err := os.Chtimes(path, future.Add(2*time.Second), future.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	fixed, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() after fix error = %v", err)
	}
	if r := catalog.Match(fixed, "fixed sentence", 0); !r.Accepted {
		t.Errorf("Match() = %+v, want the fixed templates", r)
	}
}

func TestCatalogCasingRebuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTemplates(t, dir, "en", "sentences:\n  - Turn On TV\n")

	catalog, err := sentences.NewCatalog(dir, "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	folded, err := catalog.Load(ctx, "en", textnorm.CasingCasefold)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := folded.Corpus.Entries[0].In; got != "turn on tv" {
		t.Errorf("folded input = %q, want %q", got, "turn on tv")
	}

	kept, err := catalog.Load(ctx, "en", textnorm.CasingKeep)
	if err != nil {
		t.Fatalf("Load() with different casing error = %v", err)
	}
	if got := kept.Corpus.Entries[0].In; got != "Turn On TV" {
		t.Errorf("kept input = %q, want %q", got, "Turn On TV")
	}
}

func TestCatalogErrors(t *testing.T) {
	if _, err := sentences.NewCatalog("", "", testLogger()); err == nil {
		t.Error("NewCatalog() with empty dir succeeded, want error")
	}

	catalog, err := sentences.NewCatalog(t.TempDir(), "", testLogger())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	_, err = catalog.Load(context.Background(), "xx", textnorm.CasingCasefold)
	if err == nil || !strings.Contains(err.Error(), "xx.yaml") {
		t.Errorf("Load() for missing language = %v, want an error naming the file", err)
	}
}
