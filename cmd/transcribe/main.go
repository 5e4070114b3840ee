// Command transcribe is a small client for the speech service: it streams
// audio from a WAV file, stdin, or the microphone and prints the
// transcript.
//
//	transcribe -wav hello.wav
//	transcribe -mic                 (needs a build with -tags portaudio)
//	transcribe -describe            (print the service description)
//
// Without -wav or -mic, raw 16 kHz 16-bit mono PCM is read from stdin.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/wirgen/wyoming-vosk/internal/wyoming"
)

func main() {
	var (
		server   = flag.String("server", "tcp://127.0.0.1:10300", "server uri (tcp://host:port or unix://path)")
		language = flag.String("language", "en", "transcription language")
		model    = flag.String("model", "", "ask for a specific model")
		wavPath  = flag.String("wav", "", "stream this WAV file")
		mic      = flag.Bool("mic", false, "record one utterance from the microphone")
		rate     = flag.Int("rate", wyoming.TargetRate, "microphone capture rate in Hz")
		describe = flag.Bool("describe", false, "print the service description and exit")
		timeout  = flag.Duration("timeout", time.Minute, "network deadline")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var err error
	if *describe {
		err = describeService(*server, *timeout)
	} else {
		err = transcribe(*server, *language, *model, *wavPath, *mic, *rate, *timeout, logger)
	}
	if err != nil {
		logger.Error("transcribe failed", "error", err)
		os.Exit(1)
	}
}

func describeService(server string, timeout time.Duration) error {
	conn, err := connect(server, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	reader := wyoming.NewReader(conn)
	if err := wyoming.NewWriter(conn).Write(wyoming.NewDescribe()); err != nil {
		return fmt.Errorf("requesting description: %w", err)
	}
	for {
		event, err := reader.Read()
		if err != nil {
			return fmt.Errorf("reading description: %w", err)
		}
		if event.Type != wyoming.TypeInfo {
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, event.Data, "", "  "); err != nil {
			fmt.Println(string(event.Data))
			return nil
		}
		fmt.Println(pretty.String())
		return nil
	}
}

func transcribe(server, language, model, wavPath string, mic bool, rate int, timeout time.Duration, logger *slog.Logger) error {
	// Capture or load before dialing so a slow microphone utterance does
	// not hold an idle connection open.
	format, pcm, err := loadAudio(wavPath, mic, rate, logger)
	if err != nil {
		return err
	}

	conn, err := connect(server, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	reader := wyoming.NewReader(conn)
	writer := wyoming.NewWriter(conn)

	logger.Info("streaming audio", "bytes", len(pcm), "rate", format.Rate, "language", language)

	if err := writer.Write(wyoming.NewTranscribe(model, language)); err != nil {
		return fmt.Errorf("starting transcription: %w", err)
	}
	if err := writer.Write(wyoming.NewAudioStart(format)); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	const chunkSize = 4096
	for off := 0; off < len(pcm); off += chunkSize {
		end := off + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := wyoming.AudioChunk{AudioFormat: format, Audio: pcm[off:end]}
		if err := writer.Write(wyoming.NewAudioChunk(chunk)); err != nil {
			return fmt.Errorf("streaming audio: %w", err)
		}
	}
	if err := writer.Write(wyoming.NewAudioStop()); err != nil {
		return fmt.Errorf("stopping audio: %w", err)
	}

	for {
		event, err := reader.Read()
		if err != nil {
			return fmt.Errorf("waiting for transcript: %w", err)
		}
		if event.Type != wyoming.TypeTranscript {
			continue
		}
		t, err := wyoming.ParseTranscript(event)
		if err != nil {
			return err
		}
		fmt.Println(t.Text)
		return nil
	}
}

func connect(uri string, timeout time.Duration) (net.Conn, error) {
	scheme, addr, ok := strings.Cut(uri, "://")
	if !ok || addr == "" {
		return nil, fmt.Errorf("invalid server uri %q (want scheme://address)", uri)
	}
	if scheme != "tcp" && scheme != "unix" {
		return nil, fmt.Errorf("unsupported server uri scheme %q", scheme)
	}
	conn, err := net.Dial(scheme, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", uri, err)
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting deadline: %w", err)
	}
	return conn, nil
}

// loadAudio picks the audio source: one microphone utterance, a WAV file,
// or raw PCM in the target format on stdin.
func loadAudio(wavPath string, mic bool, rate int, logger *slog.Logger) (wyoming.AudioFormat, []byte, error) {
	switch {
	case mic:
		pcm, err := recordUtterance(rate, logger)
		if err != nil {
			return wyoming.AudioFormat{}, nil, err
		}
		return wyoming.AudioFormat{Rate: rate, Width: 2, Channels: 1}, pcm, nil

	case wavPath != "":
		data, err := os.ReadFile(wavPath)
		if err != nil {
			return wyoming.AudioFormat{}, nil, fmt.Errorf("reading wav: %w", err)
		}
		return wyoming.DecodeWAV(data)

	default:
		pcm, err := io.ReadAll(os.Stdin)
		if err != nil {
			return wyoming.AudioFormat{}, nil, fmt.Errorf("reading stdin: %w", err)
		}
		format := wyoming.AudioFormat{
			Rate:     wyoming.TargetRate,
			Width:    wyoming.TargetWidth,
			Channels: wyoming.TargetChannels,
		}
		return format, pcm, nil
	}
}
