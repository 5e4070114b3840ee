// Package textnorm normalizes transcripts and template text so both sides of
// a comparison agree on casing and number spelling.
package textnorm

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Casing names one of the supported casing normalizations applied to
// vocabulary words, corpus inputs and raw transcripts alike.
type Casing string

const (
	// CasingCasefold applies Unicode case folding, the right default for
	// caseless comparison across languages.
	CasingCasefold Casing = "casefold"
	CasingLower    Casing = "lower"
	CasingUpper    Casing = "upper"
	CasingKeep     Casing = "keep"
)

// DefaultCasing matches what recognizer models overwhelmingly emit.
const DefaultCasing = CasingCasefold

// ParseCasing validates a configured casing name.
func ParseCasing(s string) (Casing, error) {
	switch c := Casing(strings.ToLower(strings.TrimSpace(s))); c {
	case CasingCasefold, CasingLower, CasingUpper, CasingKeep:
		return c, nil
	case "":
		return DefaultCasing, nil
	default:
		return "", fmt.Errorf("textnorm: unknown casing %q (want casefold, lower, upper or keep)", s)
	}
}

// Apply normalizes text according to the casing rule.
func (c Casing) Apply(text string) string {
	switch c {
	case CasingLower:
		return strings.ToLower(text)
	case CasingUpper:
		return strings.ToUpper(text)
	case CasingKeep:
		return text
	default:
		return cases.Fold().String(text)
	}
}
