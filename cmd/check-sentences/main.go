// Command check-sentences works with sentence template files outside the
// running service: it validates them, prints their expansion or vocabulary,
// and dry-runs the matcher against a transcript.
//
//	check-sentences -dir ./sentences -language en validate
//	check-sentences -dir ./sentences -language en expand
//	check-sentences -dir ./sentences -language en grammar
//	check-sentences -dir ./sentences -language en -cutoff 30 match turn of the lights
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wirgen/wyoming-vosk/internal/asr"
	"github.com/wirgen/wyoming-vosk/internal/sentences"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

func main() {
	var (
		dir      = flag.String("dir", "./sentences", "directory with per-language template files")
		language = flag.String("language", "en", "language to load ({dir}/{language}.yaml)")
		casing   = flag.String("casing", "", "text casing: casefold, lower, upper or keep")
		maxDepth = flag.Int("max-depth", 0, "rule recursion limit (0 for the default)")
		cutoff   = flag.Int("cutoff", 0, "score tolerance for the match command (0-100)")
		unknown  = flag.Bool("unknown", false, "include the unknown token in the grammar command")
	)
	flag.Usage = usage
	flag.Parse()

	command := "validate"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	if err := run(command, flag.Args(), *dir, *language, *casing, *maxDepth, *cutoff, *unknown); err != nil {
		fmt.Fprintln(os.Stderr, "check-sentences:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: check-sentences [flags] <command> [text...]

commands:
  validate      parse and expand the file, report entries and conflicts
  expand        print every sentence the file accepts (and its output)
  vocab         print the vocabulary, one word per line
  grammar       print the recognizer grammar as JSON
  match <text>  run the corrector against a transcript

flags:
`)
	flag.PrintDefaults()
}

func run(command string, args []string, dir, language, casingName string, maxDepth, cutoff int, unknown bool) error {
	cs, err := textnorm.ParseCasing(casingName)
	if err != nil {
		return err
	}

	src, err := sentences.ReadSource(dir, language)
	if err != nil {
		return err
	}
	corpus, err := sentences.BuildCorpus(src.Grammar, cs, maxDepth)
	if err != nil {
		return err
	}

	switch command {
	case "validate":
		fmt.Printf("%s: %d sentences, %d words, %d conflicts\n",
			src.Path, corpus.Len(), corpus.Vocab.Len(), len(corpus.Conflicts))
		for _, c := range corpus.Conflicts {
			fmt.Printf("conflict: %q keeps %q, discards %q\n", c.In, c.Kept, c.Discarded)
		}
		return nil

	case "expand":
		for _, e := range corpus.Entries {
			if e.Out == e.In {
				fmt.Println(e.In)
			} else {
				fmt.Printf("%s => %s\n", e.In, e.Out)
			}
		}
		return nil

	case "vocab":
		for _, w := range corpus.Vocab.Words() {
			fmt.Println(w)
		}
		return nil

	case "grammar":
		var extra []string
		if unknown {
			extra = append(extra, asr.DefaultUnknownToken)
		}
		g, err := corpus.Vocab.GrammarJSON(extra...)
		if err != nil {
			return err
		}
		fmt.Println(g)
		return nil

	case "match":
		if len(args) < 2 {
			return fmt.Errorf("match needs a transcript to test")
		}
		if cutoff < 0 || cutoff > 100 {
			return fmt.Errorf("cutoff %d out of range (0-100)", cutoff)
		}
		text := textnorm.ReplaceNumberWords(strings.Join(args[1:], " "), language)
		result := corpus.Match(text, cutoff)
		switch {
		case result.Accepted:
			fmt.Printf("accepted (score %.0f): %s\n", result.Score, result.Text)
		case result.Entry >= 0:
			fmt.Printf("rejected (score %.0f), closest: %s\n", result.Score, corpus.Entries[result.Entry].Out)
		default:
			fmt.Println("rejected: corpus is empty")
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
