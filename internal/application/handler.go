// Package application drives client sessions end to end: it speaks the
// event protocol, feeds audio through the recognizer, and runs recognized
// text through number normalization and sentence correction before
// answering with a transcript.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wirgen/wyoming-vosk/internal/asr"
	"github.com/wirgen/wyoming-vosk/internal/observe"
	"github.com/wirgen/wyoming-vosk/internal/sentences"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
	"github.com/wirgen/wyoming-vosk/internal/wyoming"
)

// Options fixes the service behavior for every session.
type Options struct {
	// DefaultLanguage is used until the client names one.
	DefaultLanguage string

	// Mode selects transcript post-processing.
	Mode Mode

	// Cutoff is the correction tolerance for ModeCorrected: 0 accepts only
	// exact template sentences, 100 accepts the closest one no matter how
	// far it is.
	Cutoff int

	// AllowUnknown adds the unknown token to limited grammars and replaces
	// transcripts containing it with the templates' unknown text.
	AllowUnknown bool

	// PhoneticRepair maps out-of-vocabulary words to similar-sounding
	// template words before correction.
	PhoneticRepair bool

	// CasingOverrides forces a casing per language, for models that emit
	// cased output.
	CasingOverrides map[string]textnorm.Casing
}

// Handler serves clients. One Handler is shared by all connections; all
// per-utterance state lives in the session.
type Handler struct {
	models  ModelSource
	catalog *sentences.Catalog
	opts    Options
	info    wyoming.Event
	metrics *observe.Metrics
	logger  *slog.Logger
}

// NewHandler wires the session pipeline. catalog may be nil when no
// sentence templates are configured; corrections then pass text through.
func NewHandler(models ModelSource, catalog *sentences.Catalog, opts Options, info wyoming.Event, metrics *observe.Metrics, logger *slog.Logger) *Handler {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Handler{
		models:  models,
		catalog: catalog,
		opts:    opts,
		info:    info,
		metrics: metrics,
		logger:  logger.With("component", "handler"),
	}
}

// Serve owns conn for the lifetime of one client session. It returns once
// the transcript is written, the client hangs up, or the session fails.
func (h *Handler) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	defer conn.Close()

	s := &session{
		h:        h,
		reader:   wyoming.NewReader(conn),
		writer:   wyoming.NewWriter(conn),
		logger:   h.logger.With("client", uuid.NewString()),
		language: h.opts.DefaultLanguage,
	}
	defer s.closeRecognizer()

	h.metrics.ActiveClients.Add(ctx, 1)
	defer h.metrics.ActiveClients.Add(ctx, -1)

	s.logger.Debug("client connected")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("client disconnected")
				return nil
			}
			return err
		}
		done, err := s.handle(ctx, event)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Correct runs raw text through the correction pipeline as if it had been
// recognized for language. It backs the admin dry-run endpoint.
func (h *Handler) Correct(ctx context.Context, language, text string, cutoff int) (sentences.Result, error) {
	if h.catalog == nil {
		return sentences.Result{}, errors.New("no sentence templates configured")
	}
	casing := asr.CasingFor("", language, h.opts.CasingOverrides)
	snap, err := h.catalog.Load(ctx, language, casing)
	if err != nil {
		return sentences.Result{}, err
	}
	raw := textnorm.ReplaceNumberWords(text, language)
	if h.opts.PhoneticRepair {
		raw = snap.Corpus.RepairWords(raw)
	}
	return h.catalog.Match(snap, raw, cutoff), nil
}

// session is the per-connection state machine.
type session struct {
	h      *Handler
	reader *wyoming.Reader
	writer *wyoming.Writer
	logger *slog.Logger

	language  string
	modelName string

	model      string
	recognizer RecognizerSession
	snap       *sentences.Snapshot
}

// handle processes one event. done means the session completed and the
// connection should close.
func (s *session) handle(ctx context.Context, event wyoming.Event) (done bool, err error) {
	switch event.Type {
	case wyoming.TypeDescribe:
		if err := s.writer.Write(s.h.info); err != nil {
			return false, fmt.Errorf("answering describe: %w", err)
		}
		return false, nil

	case wyoming.TypeTranscribe:
		t, err := wyoming.ParseTranscribe(event)
		if err != nil {
			return false, err
		}
		if t.Language != "" {
			s.language = t.Language
		}
		if t.Name != "" {
			s.modelName = t.Name
		}
		s.logger.Debug("transcribe requested", "language", s.language, "model", s.modelName)
		return false, nil

	case wyoming.TypeAudioStart:
		// A new utterance; drop any recognizer state from the previous one.
		s.closeRecognizer()
		return false, nil

	case wyoming.TypeAudioChunk:
		chunk, err := wyoming.ParseAudioChunk(event)
		if err != nil {
			return false, err
		}
		return false, s.feed(ctx, chunk)

	case wyoming.TypeAudioStop:
		return true, s.finish(ctx)

	default:
		s.logger.Debug("ignoring event", "type", event.Type)
		return false, nil
	}
}

func (s *session) feed(ctx context.Context, chunk wyoming.AudioChunk) error {
	if err := s.ensureRecognizer(ctx); err != nil {
		return err
	}
	pcm, err := wyoming.ConvertPCM(chunk.AudioFormat, chunk.Audio)
	if err != nil {
		return fmt.Errorf("converting audio: %w", err)
	}
	s.recognizer.Accept(pcm)
	s.h.metrics.AudioBytes.Add(ctx, int64(len(pcm)))
	return nil
}

// ensureRecognizer loads the model and opens the decoding session on the
// first audio chunk, after the client had a chance to pick a language.
func (s *session) ensureRecognizer(ctx context.Context) error {
	if s.recognizer != nil {
		return nil
	}

	model, rec, err := s.h.models.Get(ctx, s.language, s.modelName)
	if err != nil {
		return fmt.Errorf("loading model for %s: %w", s.language, err)
	}
	s.model = model

	casing := asr.CasingFor(model, s.language, s.h.opts.CasingOverrides)

	var grammar []string
	if s.h.opts.Mode != ModeOpen && s.h.catalog != nil {
		snap, err := s.h.catalog.Load(ctx, s.language, casing)
		if err != nil {
			return fmt.Errorf("loading sentences for %s: %w", s.language, err)
		}
		s.snap = snap
		if s.h.opts.Mode == ModeLimited {
			grammar = snap.Corpus.Vocab.Words()
			if s.h.opts.AllowUnknown {
				grammar = append(grammar, asr.DefaultUnknownToken)
			}
		}
	}

	recognizer, err := rec.NewSession(wyoming.TargetRate, grammar)
	if err != nil {
		return fmt.Errorf("opening recognizer session: %w", err)
	}
	s.recognizer = recognizer
	s.logger.Debug("recognizer ready",
		"model", model,
		"language", s.language,
		"grammar_words", len(grammar),
	)
	return nil
}

// finish turns the buffered audio into the final transcript event.
func (s *session) finish(ctx context.Context) error {
	started := time.Now()
	text, err := s.transcript(ctx)
	if err != nil {
		return err
	}
	if err := s.writer.Write(wyoming.NewTranscript(text)); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	s.h.metrics.RecordTranscribeDuration(ctx, s.language, time.Since(started).Seconds())
	s.h.metrics.RecordTranscript(ctx, s.language, s.h.opts.Mode.String())
	s.logger.Info("transcript",
		"language", s.language,
		"model", s.model,
		"text", text,
		"duration", time.Since(started),
	)
	return nil
}

// transcript drains the recognizer and post-processes its output.
func (s *session) transcript(ctx context.Context) (string, error) {
	if s.recognizer == nil {
		// Stop without audio; answer an empty transcript rather than
		// tearing down the connection.
		return "", nil
	}
	defer s.closeRecognizer()

	text, err := s.recognizer.Final()
	if err != nil {
		return "", fmt.Errorf("finalizing recognition: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	text = textnorm.ReplaceNumberWords(text, s.language)

	switch s.h.opts.Mode {
	case ModeCorrected:
		return s.correct(ctx, text, s.h.opts.Cutoff), nil
	case ModeLimited:
		// The constrained vocabulary can still produce word salad; only an
		// exact template sentence is snapped to its output.
		return s.correct(ctx, text, 0), nil
	default:
		return text, nil
	}
}

// correct snaps text to the closest template sentence. On rejection the
// recognized text is forwarded unchanged so the client still sees what was
// understood.
func (s *session) correct(ctx context.Context, text string, cutoff int) string {
	if s.snap == nil {
		return text
	}
	if s.h.opts.AllowUnknown && hasUnknownToken(text) {
		s.h.metrics.RecordCorrection(ctx, s.language, "unknown", -1)
		s.logger.Debug("unknown words in transcript", "text", text)
		return s.snap.UnknownText
	}

	raw := text
	if s.h.opts.PhoneticRepair {
		raw = s.snap.Corpus.RepairWords(raw)
	}

	result := s.h.catalog.Match(s.snap, raw, cutoff)
	if !result.Accepted {
		s.h.metrics.RecordCorrection(ctx, s.language, "rejected", result.Score)
		s.logger.Debug("no template close enough", "text", text, "score", result.Score)
		return text
	}

	outcome := "corrected"
	if result.Score >= 100 {
		outcome = "exact"
	}
	s.h.metrics.RecordCorrection(ctx, s.language, outcome, result.Score)
	if result.Text != text {
		s.logger.Info("corrected transcript",
			"from", text,
			"to", result.Text,
			"score", result.Score,
		)
	}
	return result.Text
}

func (s *session) closeRecognizer() {
	if s.recognizer != nil {
		s.recognizer.Close()
		s.recognizer = nil
	}
}

// hasUnknownToken reports whether the recognizer emitted the unknown token
// as a standalone word.
func hasUnknownToken(text string) bool {
	for _, tok := range strings.Fields(text) {
		if tok == asr.DefaultUnknownToken {
			return true
		}
	}
	return false
}
