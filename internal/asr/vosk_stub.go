//go:build !vosk
// +build !vosk

package asr

import "fmt"

// Engine stub when the Vosk bindings are not compiled in.
type Engine struct{}

func LoadEngine(dir string) (*Engine, error) {
	return nil, fmt.Errorf("asr: speech recognition not available: rebuild with -tags vosk")
}

func (e *Engine) Close() error {
	return nil
}

func (e *Engine) NewSession(sampleRate int, grammar []string) (*Session, error) {
	return nil, fmt.Errorf("asr: speech recognition not available")
}

func SetVerbose(verbose bool) {}

// Session stub when the Vosk bindings are not compiled in.
type Session struct{}

func (s *Session) Accept(chunk []byte) {}

func (s *Session) Final() (string, error) {
	return "", fmt.Errorf("asr: speech recognition not available")
}

func (s *Session) Close() {}
