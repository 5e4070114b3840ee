// Package sentences turns per-language template files into matchable
// corpora: it loads the YAML documents, materializes their expansion with a
// per-language SQLite cache, and scores raw transcripts against the result.
package sentences

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wirgen/wyoming-vosk/internal/grammar"
)

// Doc is one parsed template file: the grammar document plus the file-level
// settings that ride along with it.
type Doc struct {
	Grammar *grammar.Document

	// UnknownText replaces the transcript when the recognizer reports
	// unknown words. Empty means drop the transcript.
	UnknownText string
}

// Source is a template file as read from disk, with enough metadata to
// detect changes cheaply (size and mtime) and reliably (content hash).
type Source struct {
	*Doc

	Language string
	Path     string
	Hash     string
	Size     int64
	ModTime  time.Time
}

// SourcePath returns the template file path for a language inside dir.
func SourcePath(dir, language string) string {
	return filepath.Join(dir, language+".yaml")
}

// ReadSource loads and parses {dir}/{language}.yaml.
func ReadSource(dir, language string) (*Source, error) {
	path := SourcePath(dir, language)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("sentences: stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sentences: read %s: %w", path, err)
	}
	doc, err := ParseDocument(data, language)
	if err != nil {
		return nil, fmt.Errorf("sentences: parse %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return &Source{
		Doc:      doc,
		Language: language,
		Path:     path,
		Hash:     hex.EncodeToString(sum[:]),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// rawDocument mirrors the on-disk YAML structure. Unknown top-level keys are
// rejected so typos surface instead of silently doing nothing.
type rawDocument struct {
	Sentences      []rawSentence      `yaml:"sentences"`
	Lists          map[string]rawList `yaml:"lists"`
	ExpansionRules map[string]rawRule `yaml:"expansion_rules"`
	UnknownText    string             `yaml:"unknown_text"`
}

// ParseDocument parses YAML template bytes for one language. The document
// must declare at least one sentence, every pattern must parse, and every
// {list} and <rule> reference must resolve.
func ParseDocument(data []byte, language string) (*Doc, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawDocument
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(raw.Sentences) == 0 {
		return nil, fmt.Errorf("document declares no sentences")
	}

	doc := &grammar.Document{
		Language: language,
		Lists:    make(map[string]grammar.List, len(raw.Lists)),
		Rules:    make(map[string]grammar.Pattern, len(raw.ExpansionRules)),
	}

	for i, rs := range raw.Sentences {
		s, err := rs.sentence()
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
		doc.Sentences = append(doc.Sentences, s)
	}
	for name, rl := range raw.Lists {
		list, err := rl.list()
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", name, err)
		}
		doc.Lists[name] = list
	}
	for name, rr := range raw.ExpansionRules {
		body, err := rr.pattern()
		if err != nil {
			return nil, fmt.Errorf("expansion rule %q: %w", name, err)
		}
		doc.Rules[name] = body
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &Doc{Grammar: doc, UnknownText: raw.UnknownText}, nil
}

// rawSentence is either a plain pattern string or an in/out mapping whose
// "in" is one pattern or a sequence of patterns.
type rawSentence struct {
	In     []string
	Out    string
	HasOut bool
}

func (r *rawSentence) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		// node.Value, not Decode: bare numbers like `- 5` count as text.
		r.In = []string{node.Value}
		return nil
	}
	in, out, hasOut, err := decodeInOut(node)
	if err != nil {
		return err
	}
	r.In, r.Out, r.HasOut = in, out, hasOut
	return nil
}

func (r *rawSentence) sentence() (grammar.Sentence, error) {
	s := grammar.Sentence{Out: r.Out, HasOut: r.HasOut}
	if len(r.In) > 0 {
		s.Source = r.In[0]
	}
	for _, text := range r.In {
		pat, err := grammar.ParsePattern(text)
		if err != nil {
			return grammar.Sentence{}, err
		}
		s.Inputs = append(s.Inputs, pat)
	}
	return s, nil
}

// rawList is a sequence of items, each a plain value or an in/out mapping.
type rawList []rawSentence

func (r rawList) list() (grammar.List, error) {
	if len(r) == 0 {
		return grammar.List{}, fmt.Errorf("list is empty")
	}
	list := grammar.List{Items: make([]grammar.ListItem, 0, len(r))}
	for i, ri := range r {
		item := grammar.ListItem{Out: ri.Out, HasOut: ri.HasOut}
		for _, text := range ri.In {
			pat, err := grammar.ParsePattern(text)
			if err != nil {
				return grammar.List{}, fmt.Errorf("item %d: %w", i+1, err)
			}
			item.Inputs = append(item.Inputs, pat)
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

// rawRule is a pattern string, or a sequence of strings used as alternative
// branches.
type rawRule struct {
	patterns []string
	branches bool
}

func (r *rawRule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.patterns = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		patterns, err := stringSequence(node)
		if err != nil {
			return err
		}
		r.patterns = patterns
		r.branches = true
		return nil
	}
	return fmt.Errorf("line %d: expected a pattern string or a sequence of patterns", node.Line)
}

func (r *rawRule) pattern() (grammar.Pattern, error) {
	if len(r.patterns) == 0 {
		return nil, fmt.Errorf("rule is empty")
	}
	if !r.branches {
		return grammar.ParsePattern(r.patterns[0])
	}
	alt := grammar.Alternatives{}
	for _, text := range r.patterns {
		pat, err := grammar.ParsePattern(text)
		if err != nil {
			return nil, err
		}
		alt.Branches = append(alt.Branches, pat)
	}
	return grammar.Pattern{alt}, nil
}

// decodeInOut reads a strict {in, out} mapping node.
func decodeInOut(node *yaml.Node) (in []string, out string, hasOut bool, err error) {
	if node.Kind != yaml.MappingNode {
		return nil, "", false, fmt.Errorf("line %d: expected a pattern string or an in/out mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "in":
			switch value.Kind {
			case yaml.ScalarNode:
				in = []string{value.Value}
			case yaml.SequenceNode:
				seq, err := stringSequence(value)
				if err != nil {
					return nil, "", false, err
				}
				in = seq
			default:
				return nil, "", false, fmt.Errorf("line %d: \"in\" must be a string or a sequence of strings", value.Line)
			}
		case "out":
			if value.Kind != yaml.ScalarNode {
				return nil, "", false, fmt.Errorf("line %d: \"out\" must be a string", value.Line)
			}
			out = value.Value
			hasOut = true
		default:
			return nil, "", false, fmt.Errorf("line %d: unknown key %q (want \"in\" and \"out\")", key.Line, key.Value)
		}
	}
	if len(in) == 0 {
		return nil, "", false, fmt.Errorf("line %d: in/out mapping is missing \"in\"", node.Line)
	}
	return in, out, hasOut, nil
}

func stringSequence(node *yaml.Node) ([]string, error) {
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: expected a string", item.Line)
		}
		out = append(out, item.Value)
	}
	return out, nil
}
