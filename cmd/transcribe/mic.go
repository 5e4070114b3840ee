//go:build portaudio
// +build portaudio

package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// recordUtterance captures one spoken command from the default input
// device. Recording ends after a second of trailing silence, or at ten
// seconds, whichever comes first.
func recordUtterance(rate int, logger *slog.Logger) ([]byte, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	const framesPerBuffer = 1024
	buffer := make([]int16, framesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), framesPerBuffer, buffer)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	logger.Info("listening", "rate", rate)

	const silenceThreshold = 500
	samples := make([]int16, 0, rate*5)
	silentFrames := 0

	for {
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}
		samples = append(samples, buffer...)

		quiet := true
		for _, s := range buffer {
			if s > silenceThreshold || s < -silenceThreshold {
				quiet = false
				break
			}
		}
		if quiet {
			silentFrames += len(buffer)
		} else {
			silentFrames = 0
		}

		if silentFrames > rate && len(samples) > rate {
			break
		}
		if len(samples) > rate*10 {
			break
		}
	}

	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out, nil
}
