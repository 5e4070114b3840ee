//go:build !portaudio
// +build !portaudio

package main

import (
	"fmt"
	"log/slog"
)

func recordUtterance(_ int, _ *slog.Logger) ([]byte, error) {
	return nil, fmt.Errorf("microphone capture not available: rebuild with -tags portaudio")
}
