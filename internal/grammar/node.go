// Package grammar implements the sentence template language: parsing pattern
// strings into a grammar tree, expanding the tree into concrete
// (input, output) sentence pairs, and compiling the word inventory used to
// constrain a recognizer.
//
// Pattern syntax: plain text is matched literally, `[...]` marks an optional
// group, `(a|b)` chooses one alternative, `{name}` substitutes a list and
// `<name>` substitutes an expansion rule. There is no escaping mechanism;
// any character outside the delimiter set is literal.
package grammar

import (
	"errors"
	"strconv"
)

// Node is a single element of a parsed pattern.
type Node interface {
	isNode()
}

// Pattern is an ordered sequence of nodes. Expanding a pattern concatenates
// the expansion of each node in order, joined by single spaces.
type Pattern []Node

// Literal is plain text spoken as-is. Internal runs of whitespace collapse to
// single spaces during expansion.
type Literal struct {
	Text string
}

// Optional wraps a sub-pattern that may be skipped. The absent branch expands
// before the present branch.
type Optional struct {
	Inner Pattern
}

// Alternatives chooses exactly one of its branches, tried in source order.
type Alternatives struct {
	Branches []Pattern
}

// ListRef substitutes a named list declared in the same document.
type ListRef struct {
	Name string
}

// RuleRef substitutes a named expansion rule declared in the same document.
type RuleRef struct {
	Name string
}

func (Literal) isNode()      {}
func (Optional) isNode()     {}
func (Alternatives) isNode() {}
func (ListRef) isNode()      {}
func (RuleRef) isNode()      {}

// Sentence is one authored template. Each input pattern describes sentences a
// user can speak; when HasOut is set, every expansion produces Out instead of
// the spoken text.
type Sentence struct {
	Inputs []Pattern
	Out    string
	HasOut bool

	// Source is the first raw input string, kept for diagnostics.
	Source string
}

// ListItem is one entry of a list: one or more input spellings and the value
// they produce. Plain values leave HasOut unset so the spoken text passes
// through unchanged.
type ListItem struct {
	Inputs []Pattern
	Out    string
	HasOut bool
}

// List is an ordered sequence of items. Order is preserved so expansion stays
// deterministic.
type List struct {
	Items []ListItem
}

// Document holds every template, list and expansion rule for one language.
// Documents are immutable after assembly; reloading builds a new one.
type Document struct {
	Language  string
	Sentences []Sentence
	Lists     map[string]List
	Rules     map[string]Pattern
}

// Validate checks that every list and rule reference used anywhere in the
// document resolves. References are checked after the whole document is
// assembled, so forward references are fine. All unresolved references are
// reported, not just the first.
func (d *Document) Validate() error {
	var errs []error
	for i, s := range d.Sentences {
		where := s.Source
		if where == "" {
			where = "sentence " + strconv.Itoa(i+1)
		}
		for _, p := range s.Inputs {
			errs = append(errs, d.checkRefs(p, where)...)
		}
	}
	for _, name := range sortedKeys(d.Lists) {
		for _, item := range d.Lists[name].Items {
			for _, p := range item.Inputs {
				errs = append(errs, d.checkRefs(p, "list "+name)...)
			}
		}
	}
	for _, name := range sortedKeys(d.Rules) {
		errs = append(errs, d.checkRefs(d.Rules[name], "rule "+name)...)
	}
	return errors.Join(errs...)
}

func (d *Document) checkRefs(p Pattern, where string) []error {
	var errs []error
	for _, n := range p {
		switch n := n.(type) {
		case Optional:
			errs = append(errs, d.checkRefs(n.Inner, where)...)
		case Alternatives:
			for _, b := range n.Branches {
				errs = append(errs, d.checkRefs(b, where)...)
			}
		case ListRef:
			if _, ok := d.Lists[n.Name]; !ok {
				errs = append(errs, &UnresolvedReferenceError{
					Kind:       RefList,
					Name:       n.Name,
					Where:      where,
					Suggestion: closestName(n.Name, sortedKeys(d.Lists)),
				})
			}
		case RuleRef:
			if _, ok := d.Rules[n.Name]; !ok {
				errs = append(errs, &UnresolvedReferenceError{
					Kind:       RefRule,
					Name:       n.Name,
					Where:      where,
					Suggestion: closestName(n.Name, sortedKeys(d.Rules)),
				})
			}
		}
	}
	return errs
}
