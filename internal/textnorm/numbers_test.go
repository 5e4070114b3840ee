package textnorm_test

import (
	"testing"

	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

func TestReplaceNumberWords_English(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"set a timer for twenty three minutes", "set a timer for 23 minutes"},
		{"turn on light one", "turn on light 1"},
		{"one hundred and five", "105"},
		{"five thousand three hundred twenty one", "5321"},
		{"thirty five hundred", "3500"},
		{"dial five five five", "dial 5 5 5"},
		{"zero zero seven", "0 0 7"},
		{"one hundred and then some", "100 and then some"},
		{"one million five hundred thousand", "1500000"},
		{"nothing numeric here", "nothing numeric here"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := textnorm.ReplaceNumberWords(tc.in, "en"); got != tc.want {
			t.Errorf("ReplaceNumberWords(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReplaceNumberWords_French(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"quatre vingt dix neuf", "99"},
		{"soixante quinze", "75"},
		{"vingt et un", "21"},
		{"un chat", "un chat"},
		{"allume la lampe deux", "allume la lampe 2"},
	}
	for _, tc := range tests {
		if got := textnorm.ReplaceNumberWords(tc.in, "fr"); got != tc.want {
			t.Errorf("ReplaceNumberWords(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReplaceNumberWords_Spanish(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mil novecientos ochenta y cuatro", "1984"},
		{"treinta y un minutos", "31 minutos"},
		{"una lampara", "una lampara"},
		{"veintitres grados", "23 grados"},
	}
	for _, tc := range tests {
		if got := textnorm.ReplaceNumberWords(tc.in, "es"); got != tc.want {
			t.Errorf("ReplaceNumberWords(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReplaceNumberWords_UnsupportedLanguagePassesThrough(t *testing.T) {
	in := "einundzwanzig grad bitte"
	if got := textnorm.ReplaceNumberWords(in, "de"); got != in {
		t.Errorf("ReplaceNumberWords: got %q, want unchanged", got)
	}
}

func TestReplaceNumberWords_LanguageSubtag(t *testing.T) {
	if got := textnorm.ReplaceNumberWords("twenty two", "en-US"); got != "22" {
		t.Errorf("ReplaceNumberWords with region subtag: got %q, want 22", got)
	}
}

func TestParseCasing(t *testing.T) {
	for _, name := range []string{"casefold", "lower", "upper", "keep"} {
		c, err := textnorm.ParseCasing(name)
		if err != nil {
			t.Fatalf("ParseCasing(%q): %v", name, err)
		}
		if string(c) != name {
			t.Errorf("ParseCasing(%q): got %q", name, c)
		}
	}
	if c, err := textnorm.ParseCasing(""); err != nil || c != textnorm.DefaultCasing {
		t.Errorf("ParseCasing(empty): got %q, %v", c, err)
	}
	if _, err := textnorm.ParseCasing("title"); err == nil {
		t.Error("ParseCasing(title): expected error")
	}
}

func TestCasingApply(t *testing.T) {
	const in = "Turn ON the TV"
	tests := []struct {
		casing textnorm.Casing
		want   string
	}{
		{textnorm.CasingLower, "turn on the tv"},
		{textnorm.CasingUpper, "TURN ON THE TV"},
		{textnorm.CasingKeep, in},
		{textnorm.CasingCasefold, "turn on the tv"},
	}
	for _, tc := range tests {
		if got := tc.casing.Apply(in); got != tc.want {
			t.Errorf("%s.Apply: got %q, want %q", tc.casing, got, tc.want)
		}
	}

	// Folding differs from lowercasing where simple mappings fall short.
	if got := textnorm.CasingCasefold.Apply("Straße"); got != "strasse" {
		t.Errorf("casefold: got %q, want strasse", got)
	}
	if got := textnorm.CasingLower.Apply("Straße"); got != "straße" {
		t.Errorf("lower: got %q, want straße", got)
	}
}
