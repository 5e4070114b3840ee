package grammar

import (
	"encoding/json"
	"sort"
	"strings"
)

// Vocabulary is the deduplicated word inventory of an expanded sentence set.
// Handing it to the recognizer in limited mode shrinks the hypothesis space
// to exactly the words templates can produce, which is what makes limited
// mode accurate: anything the expander can generate is reachable, anything
// else is not.
type Vocabulary struct {
	words map[string]struct{}
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{words: make(map[string]struct{})}
}

// CompileVocabulary expands the whole document and collects every distinct
// input word.
func CompileVocabulary(d *Document, maxDepth int) (*Vocabulary, error) {
	v := NewVocabulary()
	err := d.Expand(maxDepth, func(p Pair) error {
		v.AddSentence(p.In)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// AddSentence records every word of an input sentence.
func (v *Vocabulary) AddSentence(input string) {
	for _, w := range strings.Fields(input) {
		v.words[w] = struct{}{}
	}
}

// AddWords records words directly, e.g. when restoring from a database.
func (v *Vocabulary) AddWords(words ...string) {
	for _, w := range words {
		if w != "" {
			v.words[w] = struct{}{}
		}
	}
}

func (v *Vocabulary) Contains(word string) bool {
	_, ok := v.words[word]
	return ok
}

func (v *Vocabulary) Len() int {
	return len(v.words)
}

// Words returns the vocabulary sorted ascending so downstream artifacts are
// reproducible.
func (v *Vocabulary) Words() []string {
	out := make([]string, 0, len(v.words))
	for w := range v.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// GrammarJSON renders the vocabulary as the JSON word array recognizers
// accept as a grammar, with any extra tokens (such as the engine's unknown
// token) appended after the words.
func (v *Vocabulary) GrammarJSON(extra ...string) (string, error) {
	words := append(v.Words(), extra...)
	b, err := json.Marshal(words)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
