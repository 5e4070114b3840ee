package sentences

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/wirgen/wyoming-vosk/internal/grammar"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

// Entry is one matchable sentence: the casing-normalized input a user can
// speak and the output it produces.
type Entry struct {
	In  string
	Out string
}

// Conflict records two expansions that accept the same input text but
// declare different outputs. The earliest declaration wins; the later one is
// kept here so authors can inspect the clash.
type Conflict struct {
	In        string
	Kept      string
	Discarded string
}

// Corpus is the fully materialized, immutable expansion of one document.
// Matching reads it without locks; reloading builds a fresh one.
type Corpus struct {
	Language string
	Casing   textnorm.Casing

	Entries   []Entry
	Vocab     *grammar.Vocabulary
	Conflicts []Conflict

	index    map[string]int      // input → earliest entry
	phonetic map[string][]string // metaphone code → vocabulary words, sorted
}

// BuildCorpus expands the whole document, normalizes inputs with the given
// casing and deduplicates them, keeping the earliest entry for any repeated
// input.
func BuildCorpus(doc *grammar.Document, casing textnorm.Casing, maxDepth int) (*Corpus, error) {
	c := newCorpus(doc.Language, casing)
	err := doc.Expand(maxDepth, func(p grammar.Pair) error {
		c.add(casing.Apply(p.In), p.Out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.buildPhoneticIndex()
	return c, nil
}

// RestoreCorpus rebuilds a corpus from previously persisted entries and
// words, skipping expansion entirely. Entries must already be normalized.
func RestoreCorpus(language string, casing textnorm.Casing, entries []Entry, words []string) *Corpus {
	c := newCorpus(language, casing)
	for _, e := range entries {
		c.add(e.In, e.Out)
	}
	c.Vocab.AddWords(words...)
	c.buildPhoneticIndex()
	return c
}

func newCorpus(language string, casing textnorm.Casing) *Corpus {
	return &Corpus{
		Language: language,
		Casing:   casing,
		Vocab:    grammar.NewVocabulary(),
		index:    make(map[string]int),
	}
}

func (c *Corpus) add(in, out string) {
	if in == "" {
		return
	}
	if prev, seen := c.index[in]; seen {
		if kept := c.Entries[prev].Out; kept != out {
			c.Conflicts = append(c.Conflicts, Conflict{In: in, Kept: kept, Discarded: out})
		}
		return
	}
	c.index[in] = len(c.Entries)
	c.Entries = append(c.Entries, Entry{In: in, Out: out})
	c.Vocab.AddSentence(in)
}

// Len returns the number of distinct matchable sentences.
func (c *Corpus) Len() int {
	return len(c.Entries)
}

// buildPhoneticIndex maps Double Metaphone codes to the vocabulary words
// producing them, so out-of-vocabulary tokens can be snapped to similar
// sounding known words.
func (c *Corpus) buildPhoneticIndex() {
	c.phonetic = make(map[string][]string)
	for _, w := range c.Vocab.Words() {
		primary, secondary := matchr.DoubleMetaphone(w)
		for _, code := range []string{primary, secondary} {
			if code == "" {
				continue
			}
			c.phonetic[code] = append(c.phonetic[code], w)
		}
	}
	for code := range c.phonetic {
		words := c.phonetic[code]
		sort.Strings(words)
		c.phonetic[code] = dedupeSorted(words)
	}
}

// repairThreshold is the minimum Jaro-Winkler similarity for a phonetic
// candidate to replace an out-of-vocabulary token.
const repairThreshold = 0.7

// RepairWords snaps tokens that are not in the vocabulary onto a
// similar-sounding vocabulary word, when one clears the similarity bar.
// Tokens already in the vocabulary are never touched, so exact template
// sentences pass through unchanged.
func (c *Corpus) RepairWords(raw string) string {
	tokens := strings.Fields(raw)
	changed := false
	for i, tok := range tokens {
		if c.Vocab.Contains(tok) {
			continue
		}
		if repaired, ok := c.repairToken(tok); ok {
			tokens[i] = repaired
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return strings.Join(tokens, " ")
}

func (c *Corpus) repairToken(tok string) (string, bool) {
	primary, secondary := matchr.DoubleMetaphone(tok)
	best := ""
	bestScore := repairThreshold
	for _, code := range []string{primary, secondary} {
		if code == "" {
			continue
		}
		for _, candidate := range c.phonetic[code] {
			if score := matchr.JaroWinkler(tok, candidate, false); score > bestScore {
				best, bestScore = candidate, score
			}
		}
	}
	return best, best != ""
}

func dedupeSorted(words []string) []string {
	out := words[:0]
	for i, w := range words {
		if i == 0 || words[i-1] != w {
			out = append(out, w)
		}
	}
	return out
}
