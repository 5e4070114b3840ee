package grammar

import (
	"fmt"
	"sort"

	"github.com/antzucaro/matchr"
)

// RefKind distinguishes list references from rule references in errors.
type RefKind string

const (
	RefList RefKind = "list"
	RefRule RefKind = "rule"
)

// SyntaxError reports a malformed construct in a pattern string. Offset is a
// rune offset into Pattern.
type SyntaxError struct {
	Pattern string
	Offset  int
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("grammar: %s at offset %d in %q", e.Msg, e.Offset, e.Pattern)
}

// UnresolvedReferenceError reports a {list} or <rule> reference whose name is
// not declared in the document. Suggestion carries the closest declared name,
// or is empty when nothing similar exists.
type UnresolvedReferenceError struct {
	Kind       RefKind
	Name       string
	Where      string
	Suggestion string
}

func (e *UnresolvedReferenceError) Error() string {
	msg := fmt.Sprintf("grammar: unknown %s %q in %s", e.Kind, e.Name, e.Where)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// TooDeepError reports rule expansion that exceeded the recursion bound,
// which almost always means a rule references itself.
type TooDeepError struct {
	Rule  string
	Limit int
}

func (e *TooDeepError) Error() string {
	return fmt.Sprintf("grammar: rule %q exceeds expansion depth %d (recursive rule?)", e.Rule, e.Limit)
}

// suggestionThreshold is the minimum Jaro-Winkler similarity for a declared
// name to be offered as a correction for an unresolved reference.
const suggestionThreshold = 0.8

func closestName(name string, candidates []string) string {
	best := ""
	bestScore := suggestionThreshold
	for _, c := range candidates {
		if score := matchr.JaroWinkler(name, c, false); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
