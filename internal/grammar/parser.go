package grammar

import (
	"fmt"
	"strings"
	"unicode"
)

// specials are the delimiter runes of the pattern syntax. Everything else is
// literal text.
const specials = "[](){}<>|"

// ParsePattern parses one pattern string into its grammar tree. It fails with
// a [SyntaxError] on unbalanced delimiters, empty groups, empty alternative
// branches and malformed reference names.
func ParsePattern(text string) (Pattern, error) {
	p := &parser{text: text, src: []rune(text)}
	pat, stop, err := p.sequence("")
	if err != nil {
		return nil, err
	}
	if stop != 0 {
		return nil, p.errorf("unexpected %q", stop)
	}
	return pat, nil
}

// MustParsePattern is ParsePattern for hard-coded patterns; it panics on
// error.
func MustParsePattern(text string) Pattern {
	pat, err := ParsePattern(text)
	if err != nil {
		panic(err)
	}
	return pat
}

type parser struct {
	text string
	src  []rune
	pos  int
}

// sequence parses nodes until end of input or one of the terminator runes.
// The terminator itself is consumed and returned; 0 means end of input.
func (p *parser) sequence(terminators string) (Pattern, rune, error) {
	var pat Pattern
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			pat = append(pat, Literal{Text: literal.String()})
			literal.Reset()
		}
	}

	for p.pos < len(p.src) {
		r := p.src[p.pos]
		if strings.ContainsRune(terminators, r) {
			p.pos++
			flush()
			return pat, r, nil
		}
		switch r {
		case '[':
			flush()
			p.pos++
			branches, err := p.group(']')
			if err != nil {
				return nil, 0, err
			}
			pat = append(pat, Optional{Inner: singleOrAlternatives(branches)})
		case '(':
			flush()
			p.pos++
			branches, err := p.group(')')
			if err != nil {
				return nil, 0, err
			}
			pat = append(pat, Alternatives{Branches: branches})
		case '{':
			flush()
			name, err := p.reference('}')
			if err != nil {
				return nil, 0, err
			}
			pat = append(pat, ListRef{Name: name})
		case '<':
			flush()
			name, err := p.reference('>')
			if err != nil {
				return nil, 0, err
			}
			pat = append(pat, RuleRef{Name: name})
		case ']', ')', '}', '>', '|':
			return nil, 0, p.errorf("unexpected %q", r)
		default:
			literal.WriteRune(r)
			p.pos++
		}
	}
	flush()
	return pat, 0, nil
}

// group parses `|`-separated branches up to the closing delimiter, which has
// already been decided by the opening one. Both group forms share this:
// `(a|b)` chooses a branch, `[a|b]` optionally chooses a branch.
func (p *parser) group(closer rune) ([]Pattern, error) {
	var branches []Pattern
	for {
		branch, stop, err := p.sequence("|" + string(closer))
		if err != nil {
			return nil, err
		}
		if stop == 0 {
			return nil, p.errorf("missing %q", closer)
		}
		if isBlank(branch) {
			if len(branches) == 0 && stop == closer {
				return nil, p.errorf("empty group")
			}
			return nil, p.errorf("empty alternative branch")
		}
		branches = append(branches, branch)
		if stop == closer {
			return branches, nil
		}
	}
}

// reference parses a {list} or <rule> name. The opening rune is at p.pos.
func (p *parser) reference(closer rune) (string, error) {
	p.pos++
	start := p.pos
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		if r == closer {
			name := strings.TrimSpace(string(p.src[start:p.pos]))
			p.pos++
			if name == "" {
				return "", p.errorf("empty reference name")
			}
			if !validName(name) {
				return "", p.errorf("invalid reference name %q", name)
			}
			return name, nil
		}
		if strings.ContainsRune(specials, r) {
			return "", p.errorf("unexpected %q in reference name", r)
		}
		p.pos++
	}
	return "", p.errorf("missing %q", closer)
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Pattern: p.text,
		Offset:  p.pos,
		Msg:     fmt.Sprintf(format, args...),
	}
}

func singleOrAlternatives(branches []Pattern) Pattern {
	if len(branches) == 1 {
		return branches[0]
	}
	return Pattern{Alternatives{Branches: branches}}
}

// isBlank reports whether a pattern can only ever produce empty text, which
// makes a group or branch meaningless.
func isBlank(pat Pattern) bool {
	for _, n := range pat {
		lit, ok := n.(Literal)
		if !ok || strings.TrimSpace(lit.Text) != "" {
			return false
		}
	}
	return true
}

// validName accepts the reference names templates may declare: no whitespace,
// no pattern delimiters.
func validName(name string) bool {
	for _, r := range name {
		if unicode.IsSpace(r) || strings.ContainsRune(specials, r) {
			return false
		}
	}
	return true
}
