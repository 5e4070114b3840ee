//go:build vosk
// +build vosk

package asr

import (
	"encoding/json"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"
)

func init() {
	// Kaldi is chatty on stderr by default.
	vosk.SetLogLevel(-1)
}

// SetVerbose turns the underlying Kaldi logging back on for debugging.
func SetVerbose(verbose bool) {
	if verbose {
		vosk.SetLogLevel(0)
	} else {
		vosk.SetLogLevel(-1)
	}
}

// Engine wraps one loaded Vosk model. Sessions each own a recognizer, so a
// single engine serves concurrent clients.
type Engine struct {
	model *vosk.VoskModel
}

// LoadEngine loads the model stored in dir.
func LoadEngine(dir string) (*Engine, error) {
	model, err := vosk.NewModel(dir)
	if err != nil {
		return nil, fmt.Errorf("asr: loading model %s: %w", dir, err)
	}
	return &Engine{model: model}, nil
}

// Close frees the model.
func (e *Engine) Close() error {
	e.model.Free()
	return nil
}

// NewSession creates a recognizer for one utterance. A non-empty grammar
// restricts recognition to exactly those words.
func (e *Engine) NewSession(sampleRate int, grammar []string) (*Session, error) {
	var (
		rec *vosk.VoskRecognizer
		err error
	)
	if len(grammar) > 0 {
		words, jerr := json.Marshal(grammar)
		if jerr != nil {
			return nil, fmt.Errorf("asr: encoding grammar: %w", jerr)
		}
		rec, err = vosk.NewRecognizerGrm(e.model, float64(sampleRate), string(words))
	} else {
		rec, err = vosk.NewRecognizer(e.model, float64(sampleRate))
	}
	if err != nil {
		return nil, fmt.Errorf("asr: creating recognizer: %w", err)
	}
	return &Session{rec: rec}, nil
}

// Session recognizes one utterance. Not safe for concurrent use.
type Session struct {
	rec *vosk.VoskRecognizer
}

// Accept feeds a chunk of 16-bit mono PCM to the recognizer.
func (s *Session) Accept(chunk []byte) {
	s.rec.AcceptWaveform(chunk)
}

// Final flushes the recognizer and returns the transcript text.
func (s *Session) Final() (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(s.rec.FinalResult()), &result); err != nil {
		return "", fmt.Errorf("asr: decoding recognizer result: %w", err)
	}
	return result.Text, nil
}

// Close frees the recognizer.
func (s *Session) Close() {
	s.rec.Free()
}
