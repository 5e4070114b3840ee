package sentences_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wirgen/wyoming-vosk/internal/grammar"
	"github.com/wirgen/wyoming-vosk/internal/sentences"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

func mustCorpus(t *testing.T, yaml string, casing textnorm.Casing) *sentences.Corpus {
	t.Helper()
	doc, err := sentences.ParseDocument([]byte(yaml), "en")
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	corpus, err := sentences.BuildCorpus(doc.Grammar, casing, 0)
	if err != nil {
		t.Fatalf("BuildCorpus() error = %v", err)
	}
	return corpus
}

func TestBuildCorpusAppliesCasing(t *testing.T) {
	corpus := mustCorpus(t, `
sentences:
  - Turn On {device}
lists:
  device:
    - TV
    - in: Light
      out: Bedroom Light
`, textnorm.CasingCasefold)

	want := []sentences.Entry{
		{In: "turn on tv", Out: "Turn On TV"},
		{In: "turn on light", Out: "Turn On Bedroom Light"},
	}
	if !reflect.DeepEqual(corpus.Entries, want) {
		t.Errorf("entries = %+v, want %+v", corpus.Entries, want)
	}
}

func TestBuildCorpusKeepCasing(t *testing.T) {
	corpus := mustCorpus(t, "sentences:\n  - Turn On TV\n", textnorm.CasingKeep)
	if got := corpus.Entries[0].In; got != "Turn On TV" {
		t.Errorf("input = %q, want %q", got, "Turn On TV")
	}
}

func TestBuildCorpusConflicts(t *testing.T) {
	corpus := mustCorpus(t, `
sentences:
  - in: lumos
    out: first
  - in: lumos
    out: second
  - in: lumos
    out: first
`, textnorm.CasingCasefold)

	if corpus.Len() != 1 {
		t.Fatalf("corpus has %d entries, want 1", corpus.Len())
	}
	if got := corpus.Entries[0].Out; got != "first" {
		t.Errorf("kept output = %q, want %q (earliest declaration wins)", got, "first")
	}
	want := []sentences.Conflict{{In: "lumos", Kept: "first", Discarded: "second"}}
	if !reflect.DeepEqual(corpus.Conflicts, want) {
		t.Errorf("conflicts = %+v, want %+v", corpus.Conflicts, want)
	}
}

func TestBuildCorpusDepthLimit(t *testing.T) {
	doc, err := sentences.ParseDocument([]byte(`
sentences:
  - say <loop>
expansion_rules:
  loop: again <loop>
`), "en")
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	_, err = sentences.BuildCorpus(doc.Grammar, textnorm.CasingCasefold, 0)
	var tooDeep *grammar.TooDeepError
	if !errors.As(err, &tooDeep) {
		t.Fatalf("BuildCorpus() error = %v, want TooDeepError", err)
	}
	if tooDeep.Rule != "loop" {
		t.Errorf("rule = %q, want %q", tooDeep.Rule, "loop")
	}
}

func TestRestoreCorpus(t *testing.T) {
	entries := []sentences.Entry{
		{In: "turn on tv", Out: "turn on tv"},
		{In: "lumos", Out: "turn on all the lights"},
	}
	words := []string{"lumos", "on", "turn", "tv"}

	corpus := sentences.RestoreCorpus("en", textnorm.CasingCasefold, entries, words)
	if corpus.Len() != 2 {
		t.Fatalf("restored %d entries, want 2", corpus.Len())
	}
	if got := corpus.Vocab.Words(); !reflect.DeepEqual(got, words) {
		t.Errorf("vocabulary = %v, want %v", got, words)
	}
	if r := corpus.Match("lumos", 0); !r.Accepted || r.Text != "turn on all the lights" {
		t.Errorf("Match(lumos) = %+v, want exact acceptance", r)
	}
}

func TestRepairWords(t *testing.T) {
	corpus := mustCorpus(t, `
sentences:
  - turn on the light
  - lumos
`, textnorm.CasingCasefold)

	tests := []struct {
		raw  string
		want string
	}{
		// Similar-sounding out-of-vocabulary words snap to known ones.
		{"turn on the lumus", "turn on the lumos"},
		// In-vocabulary tokens are never rewritten.
		{"turn on the light", "turn on the light"},
		// Nothing close enough: the token stays as heard.
		{"turn on the qqq", "turn on the qqq"},
	}
	for _, tt := range tests {
		if got := corpus.RepairWords(tt.raw); got != tt.want {
			t.Errorf("RepairWords(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
