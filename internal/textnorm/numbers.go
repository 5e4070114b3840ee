package textnorm

import (
	"strconv"
	"strings"
)

// ReplaceNumberWords rewrites spelled-out cardinal numbers as digits, e.g.
// "set a timer for twenty three minutes" becomes "set a timer for 23
// minutes". Recognizers emit number words while templates are usually
// authored with digits; converting transcripts before matching lets both
// agree.
//
// Supported languages: English, Spanish and French (matched on the primary
// subtag, so "en-US" works). Any other language passes through unchanged.
// Isolated articles that double as number words ("un", "une", "una") are left
// alone.
func ReplaceNumberWords(text, language string) string {
	lang := primarySubtag(language)
	rules, ok := numberRules[lang]
	if !ok {
		return text
	}

	var (
		out    []string
		parser numberParser
	)
	for _, token := range strings.Fields(text) {
		out = parser.feed(rules, token, out)
	}
	return strings.Join(parser.flush(out), " ")
}

func primarySubtag(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// numberLang holds the per-language word tables.
type numberLang struct {
	// small maps words to direct values below one thousand (units, teens,
	// tens, and single-word hundreds like "doscientos").
	small map[string]int
	// hundred words multiply the current group by 100.
	hundred map[string]bool
	// scale maps thousand/million words to their multiplier.
	scale map[string]int
	// connector is spoken between parts ("and", "y", "et") and is dropped
	// when it joins two number words.
	connector map[string]bool
	// twentyMultiplier marks languages where a small value multiplies a
	// following "vingt" (French "quatre vingt" = 80).
	twentyMultiplier map[string]bool
	// articles are words that only count as numbers inside a larger phrase:
	// "vingt et un" is 21 but a lone "un" stays an article.
	articles map[string]bool
}

// numberParser accumulates one spoken number phrase at a time.
type numberParser struct {
	active    bool
	total     int    // completed scale groups
	current   int    // group under construction, < current scale
	last      int    // last small component added, for monotonic composition
	lastScale int    // smallest scale applied so far, 0 = none
	words     int    // number words consumed in this phrase
	article   string // original token when the phrase is just a lone article
	pending   string
}

// feed consumes one token, appending any completed output words to out.
func (p *numberParser) feed(rules *numberLang, token string, out []string) []string {
	word := strings.ToLower(token)

	if p.active && rules.connector[word] && p.pending == "" {
		// Hold the connector: dropped if the number continues, emitted
		// verbatim if it does not.
		p.pending = token
		return out
	}

	if v, ok := rules.small[word]; ok {
		return p.feedSmall(rules, token, word, v, out)
	}
	if rules.hundred[word] {
		if p.active && (p.current >= 100 || p.current == 0) && p.lastScale == 0 && p.total == 0 {
			// "hundred hundred" or a bare repeat: close the phrase first.
			out = p.flush(out)
		}
		p.activate()
		p.words++
		p.article = ""
		if p.current == 0 {
			p.current = 100
		} else {
			p.current *= 100
		}
		p.last = 100
		return out
	}
	if scale, ok := rules.scale[word]; ok {
		if p.active && p.lastScale != 0 && scale >= p.lastScale {
			out = p.flush(out)
		}
		p.activate()
		p.words++
		p.article = ""
		group := p.current
		if group == 0 {
			group = 1
		}
		p.total += group * scale
		p.current = 0
		p.last = 0
		p.lastScale = scale
		return out
	}

	// Not a number word: emit any held phrase, then the token itself.
	out = p.flush(out)
	return append(out, token)
}

func (p *numberParser) feedSmall(rules *numberLang, token, word string, v int, out []string) []string {
	if v == 0 {
		// Zero never composes: "zero zero seven" is "0 0 7".
		out = p.flush(out)
		out = append(out, "0")
		return out
	}
	if p.active && rules.twentyMultiplier[word] && p.last >= 2 && p.last <= 9 && p.current == p.last {
		// French "quatre vingt" = 80.
		p.words++
		p.article = ""
		p.current = p.last * v
		p.last = p.current
		return out
	}
	if p.active && (p.last == 0 || v >= p.last) && p.current != 0 {
		// "five five" or "twenty thirty": two separate numbers.
		out = p.flush(out)
	}
	p.activate()
	p.words++
	if p.words == 1 && rules.articles[word] {
		p.article = token
	} else {
		p.article = ""
	}
	p.current += v
	p.last = v
	return out
}

func (p *numberParser) activate() {
	if !p.active {
		p.active = true
		p.total = 0
		p.current = 0
		p.last = 0
		p.lastScale = 0
		p.words = 0
		p.article = ""
	}
	p.pending = ""
}

// flush emits the accumulated number (if any) and any held connector.
func (p *numberParser) flush(out []string) []string {
	if p.active {
		if p.article != "" {
			out = append(out, p.article)
		} else {
			out = append(out, strconv.Itoa(p.total+p.current))
		}
	}
	if p.pending != "" {
		out = append(out, p.pending)
	}
	*p = numberParser{}
	return out
}

var numberRules = map[string]*numberLang{
	"en": {
		small: map[string]int{
			"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
			"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
			"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
			"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
			"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30,
			"forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
			"eighty": 80, "ninety": 90,
		},
		hundred:   map[string]bool{"hundred": true},
		scale:     map[string]int{"thousand": 1000, "million": 1000000},
		connector: map[string]bool{"and": true},
	},
	"es": {
		small: map[string]int{
			"cero": 0, "uno": 1, "un": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4,
			"cinco": 5, "seis": 6, "siete": 7, "ocho": 8, "nueve": 9,
			"diez": 10, "once": 11, "doce": 12, "trece": 13, "catorce": 14,
			"quince": 15, "dieciséis": 16, "dieciseis": 16, "diecisiete": 17,
			"dieciocho": 18, "diecinueve": 19, "veinte": 20,
			"veintiuno": 21, "veintidós": 22, "veintidos": 22,
			"veintitrés": 23, "veintitres": 23, "veinticuatro": 24,
			"veinticinco": 25, "veintiséis": 26, "veintiseis": 26,
			"veintisiete": 27, "veintiocho": 28, "veintinueve": 29,
			"treinta": 30, "cuarenta": 40, "cincuenta": 50, "sesenta": 60,
			"setenta": 70, "ochenta": 80, "noventa": 90,
			"doscientos": 200, "trescientos": 300, "cuatrocientos": 400,
			"quinientos": 500, "seiscientos": 600, "setecientos": 700,
			"ochocientos": 800, "novecientos": 900,
		},
		hundred:   map[string]bool{"cien": true, "ciento": true},
		scale:     map[string]int{"mil": 1000, "millón": 1000000, "millon": 1000000, "millones": 1000000},
		connector: map[string]bool{"y": true},
		articles:  map[string]bool{"un": true, "una": true},
	},
	"fr": {
		small: map[string]int{
			"zéro": 0, "zero": 0, "un": 1, "une": 1, "deux": 2, "trois": 3,
			"quatre": 4, "cinq": 5, "six": 6, "sept": 7, "huit": 8,
			"neuf": 9, "dix": 10, "onze": 11, "douze": 12, "treize": 13,
			"quatorze": 14, "quinze": 15, "seize": 16,
			"vingt": 20, "vingts": 20, "trente": 30, "quarante": 40,
			"cinquante": 50, "soixante": 60,
		},
		hundred:          map[string]bool{"cent": true, "cents": true},
		scale:            map[string]int{"mille": 1000, "million": 1000000, "millions": 1000000},
		connector:        map[string]bool{"et": true},
		twentyMultiplier: map[string]bool{"vingt": true, "vingts": true},
		articles:         map[string]bool{"un": true, "une": true},
	},
}
