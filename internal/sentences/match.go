package sentences

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Result is the outcome of matching raw text against a corpus. Rejection is
// a normal outcome, not an error: Accepted is false and Text is empty.
type Result struct {
	Text     string
	Score    float64
	Accepted bool

	// Entry is the index of the best corpus entry, -1 when the corpus is
	// empty.
	Entry int
}

// Match scores raw text against every corpus entry and applies the cutoff
// policy. Scores live in [0,100] with 100 meaning the text is literally
// reachable by the templates.
//
// Cutoff is a tolerance: 0 accepts exact matches only, a cutoff c accepts
// scores of at least 100-c, and 100 accepts everything. Raising the cutoff
// therefore never rejects a previously accepted input.
//
// The best-scoring entry wins; ties keep the earliest declared entry.
func (c *Corpus) Match(raw string, cutoff int) Result {
	norm := normalize(c.Casing.Apply(raw))
	if len(c.Entries) == 0 {
		return Result{Entry: -1}
	}

	// Exact hits skip scoring. Score 100 is only reachable this way: two
	// distinct normalized strings always differ in some token.
	if i, ok := c.index[norm]; ok {
		return Result{Text: c.Entries[i].Out, Score: 100, Accepted: true, Entry: i}
	}

	rawTokens := strings.Fields(norm)
	best, bestScore := -1, -1.0
	for i := range c.Entries {
		score := similarity(rawTokens, strings.Fields(c.Entries[i].In))
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	result := Result{Score: bestScore, Entry: best}
	if cutoff > 0 && bestScore >= float64(100-cutoff) {
		result.Accepted = true
		result.Text = c.Entries[best].Out
	}
	return result
}

// similarity is a word-level edit distance rendered as a percentage.
// Insertions and deletions cost one token; substituting a word costs its
// normalized character-level Levenshtein distance, so near-miss words
// ("light"/"lights") hurt less than unrelated ones.
func similarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]float64, len(b)+1)
	cur := make([]float64, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = float64(j)
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = float64(i)
		for j := 1; j <= len(b); j++ {
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + wordDistance(a[i-1], b[j-1])
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}

	distance := prev[len(b)]
	score := (1 - distance/float64(maxLen)) * 100
	if score < 0 {
		return 0
	}
	return score
}

// wordDistance is the character-level Levenshtein distance between two words
// normalized into [0,1].
func wordDistance(a, b string) float64 {
	if a == b {
		return 0
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return float64(matchr.Levenshtein(a, b)) / float64(longest)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func min3(a, b, c float64) float64 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
