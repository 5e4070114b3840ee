package grammar

import (
	"fmt"
	"strings"
)

// Pair is one concrete expansion of a pattern: In is the text a user can
// speak, Out is the text produced when it is heard. They differ only when an
// in/out mapping applies somewhere in the pattern.
type Pair struct {
	In  string
	Out string
}

// DefaultMaxDepth bounds rule-reference recursion during expansion. Eight
// levels is far beyond what hand-authored templates nest; hitting the bound
// means a rule cycle.
const DefaultMaxDepth = 8

// Expand enumerates every (input, output) pair of every sentence in document
// order, calling yield for each. Expansion is lazy: pairs stream out one at a
// time and yield may stop the walk by returning an error, so callers control
// how much is materialized.
//
// Order is deterministic: sentences in declaration order, alternative
// branches and list items in source order, and the absent branch of an
// optional group before the present one.
func (d *Document) Expand(maxDepth int, yield func(Pair) error) error {
	for i := range d.Sentences {
		if err := d.ExpandSentence(d.Sentences[i], maxDepth, yield); err != nil {
			return err
		}
	}
	return nil
}

// ExpandSentence enumerates the pairs of a single sentence. A sentence-level
// out override replaces the output of every pair while inputs stay distinct.
// maxDepth <= 0 selects [DefaultMaxDepth].
func (d *Document) ExpandSentence(s Sentence, maxDepth int, yield func(Pair) error) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	out := normalizeSpace(s.Out)
	for _, input := range s.Inputs {
		err := d.expandSeq(input, 0, maxDepth, Pair{}, func(p Pair) error {
			p.In = normalizeSpace(p.In)
			p.Out = normalizeSpace(p.Out)
			if s.HasOut {
				p.Out = out
			}
			return yield(p)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// expandSeq expands a node sequence left to right, carrying the pair built so
// far. The Cartesian product of node expansions falls out of the recursion.
func (d *Document) expandSeq(nodes []Node, depth, maxDepth int, prefix Pair, yield func(Pair) error) error {
	if len(nodes) == 0 {
		return yield(prefix)
	}
	rest := nodes[1:]
	return d.expandNode(nodes[0], depth, maxDepth, func(p Pair) error {
		return d.expandSeq(rest, depth, maxDepth, joinPairs(prefix, p), yield)
	})
}

func (d *Document) expandNode(n Node, depth, maxDepth int, yield func(Pair) error) error {
	switch n := n.(type) {
	case Literal:
		text := normalizeSpace(n.Text)
		return yield(Pair{In: text, Out: text})
	case Optional:
		// Absent branch first.
		if err := yield(Pair{}); err != nil {
			return err
		}
		return d.expandSeq(n.Inner, depth, maxDepth, Pair{}, yield)
	case Alternatives:
		for _, branch := range n.Branches {
			if err := d.expandSeq(branch, depth, maxDepth, Pair{}, yield); err != nil {
				return err
			}
		}
		return nil
	case ListRef:
		list, ok := d.Lists[n.Name]
		if !ok {
			return &UnresolvedReferenceError{
				Kind:       RefList,
				Name:       n.Name,
				Where:      "expansion",
				Suggestion: closestName(n.Name, sortedKeys(d.Lists)),
			}
		}
		for _, item := range list.Items {
			itemOut := normalizeSpace(item.Out)
			for _, input := range item.Inputs {
				err := d.expandSeq(input, depth, maxDepth, Pair{}, func(p Pair) error {
					if item.HasOut {
						p.Out = itemOut
					}
					return yield(p)
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	case RuleRef:
		body, ok := d.Rules[n.Name]
		if !ok {
			return &UnresolvedReferenceError{
				Kind:       RefRule,
				Name:       n.Name,
				Where:      "expansion",
				Suggestion: closestName(n.Name, sortedKeys(d.Rules)),
			}
		}
		if depth+1 > maxDepth {
			return &TooDeepError{Rule: n.Name, Limit: maxDepth}
		}
		return d.expandSeq(body, depth+1, maxDepth, Pair{}, yield)
	}
	return fmt.Errorf("grammar: unhandled node type %T", n)
}

func joinPairs(a, b Pair) Pair {
	return Pair{In: joinText(a.In, b.In), Out: joinText(a.Out, b.Out)}
}

// joinText concatenates two expansion fragments with a single space, letting
// empty fragments (absent optionals) vanish instead of doubling separators.
func joinText(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
