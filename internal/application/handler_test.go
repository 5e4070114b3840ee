package application_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wirgen/wyoming-vosk/internal/application"
	"github.com/wirgen/wyoming-vosk/internal/sentences"
	"github.com/wirgen/wyoming-vosk/internal/wyoming"
)

const testTemplates = `sentences:
  - in: lumos
    out: turn on all the lights
  - turn (on|off) {device}
lists:
  device:
    - tv
    - in: bedroom lamp
      out: the bedroom lamp
unknown_text: did not catch that
`

type stubSession struct {
	transcript string
	finalErr   error
	chunks     [][]byte
	closed     bool
}

func (s *stubSession) Accept(chunk []byte) {
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
}

func (s *stubSession) Final() (string, error) { return s.transcript, s.finalErr }

func (s *stubSession) Close() { s.closed = true }

type stubRecognizer struct {
	session *stubSession
	err     error

	gotRate    int
	gotGrammar []string
}

func (r *stubRecognizer) NewSession(rate int, grammar []string) (application.RecognizerSession, error) {
	r.gotRate = rate
	r.gotGrammar = grammar
	if r.err != nil {
		return nil, r.err
	}
	return r.session, nil
}

type stubModels struct {
	model string
	rec   *stubRecognizer
	err   error

	calls        int
	gotLanguage  string
	gotRequested string
}

func (m *stubModels) Get(_ context.Context, language, requested string) (string, application.Recognizer, error) {
	m.calls++
	m.gotLanguage = language
	m.gotRequested = requested
	if m.err != nil {
		return "", nil, m.err
	}
	return m.model, m.rec, nil
}

// scriptedConn replays pre-written client events and records the replies.
type scriptedConn struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (c *scriptedConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *scriptedConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *scriptedConn) Close() error                { return nil }

func clientScript(t *testing.T, events ...wyoming.Event) *scriptedConn {
	t.Helper()
	conn := &scriptedConn{in: &bytes.Buffer{}, out: &bytes.Buffer{}}
	w := wyoming.NewWriter(conn.in)
	for _, event := range events {
		if err := w.Write(event); err != nil {
			t.Fatalf("scripting event %q: %v", event.Type, err)
		}
	}
	return conn
}

func replies(t *testing.T, conn *scriptedConn) []wyoming.Event {
	t.Helper()
	r := wyoming.NewReader(bytes.NewReader(conn.out.Bytes()))
	var events []wyoming.Event
	for {
		event, err := r.Read()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("reading reply: %v", err)
		}
		events = append(events, event)
	}
}

func transcriptText(t *testing.T, events []wyoming.Event) string {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no reply events, want a transcript")
	}
	last := events[len(events)-1]
	if last.Type != wyoming.TypeTranscript {
		t.Fatalf("last reply type = %q, want %q", last.Type, wyoming.TypeTranscript)
	}
	tr, err := wyoming.ParseTranscript(last)
	if err != nil {
		t.Fatalf("parsing transcript: %v", err)
	}
	return tr.Text
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestTemplates(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestHandler(t *testing.T, models application.ModelSource, templatesDir string, opts application.Options) *application.Handler {
	t.Helper()
	var catalog *sentences.Catalog
	if templatesDir != "" {
		var err error
		catalog, err = sentences.NewCatalog(templatesDir, "", testLogger())
		if err != nil {
			t.Fatal(err)
		}
	}
	return application.NewHandler(models, catalog, opts, application.ServiceInfo("test"), nil, testLogger())
}

func pcm16(samples int) []byte {
	b := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(int16(i%512)))
	}
	return b
}

func targetFormat() wyoming.AudioFormat {
	return wyoming.AudioFormat{Rate: wyoming.TargetRate, Width: 2, Channels: 1}
}

func utterance(t *testing.T, audio []byte, format wyoming.AudioFormat) *scriptedConn {
	t.Helper()
	return clientScript(t,
		wyoming.NewTranscribe("", "en"),
		wyoming.NewAudioStart(format),
		wyoming.NewAudioChunk(wyoming.AudioChunk{AudioFormat: format, Audio: audio}),
		wyoming.NewAudioStop(),
	)
}

func TestHandler_OpenMode(t *testing.T) {
	session := &stubSession{transcript: "turn on the kitchen light"}
	models := &stubModels{model: "vosk-model-small-en-us-0.15", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, "", application.Options{Mode: application.ModeOpen})

	audio := pcm16(320)
	conn := utterance(t, audio, targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if got := transcriptText(t, replies(t, conn)); got != "turn on the kitchen light" {
		t.Errorf("transcript = %q, want the recognizer output untouched", got)
	}
	if models.gotLanguage != "en" || models.gotRequested != "" {
		t.Errorf("model request = (%q, %q), want (en, )", models.gotLanguage, models.gotRequested)
	}
	if len(session.chunks) != 1 || !bytes.Equal(session.chunks[0], audio) {
		t.Errorf("recognizer audio = %d chunks, want the converted PCM passed through", len(session.chunks))
	}
	if !session.closed {
		t.Error("recognizer session left open after the transcript")
	}
}

func TestHandler_LazyModelLoad(t *testing.T) {
	session := &stubSession{transcript: "hello"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, "", application.Options{})

	format := targetFormat()
	conn := clientScript(t,
		wyoming.NewTranscribe("", "en"),
		wyoming.NewAudioStart(format),
		wyoming.NewAudioChunk(wyoming.AudioChunk{AudioFormat: format, Audio: pcm16(160)}),
		wyoming.NewAudioChunk(wyoming.AudioChunk{AudioFormat: format, Audio: pcm16(160)}),
		wyoming.NewAudioChunk(wyoming.AudioChunk{AudioFormat: format, Audio: pcm16(160)}),
		wyoming.NewAudioStop(),
	)
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if models.calls != 1 {
		t.Errorf("model lookups = %d, want 1 per utterance", models.calls)
	}
	if len(session.chunks) != 3 {
		t.Errorf("chunks fed = %d, want 3", len(session.chunks))
	}
}

func TestHandler_DescribeOnly(t *testing.T) {
	handler := newTestHandler(t, &stubModels{}, "", application.Options{})

	conn := clientScript(t, wyoming.NewDescribe())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	events := replies(t, conn)
	if len(events) != 1 || events[0].Type != wyoming.TypeInfo {
		t.Fatalf("replies = %d events, want a single info event", len(events))
	}
	info, err := wyoming.ParseInfo(events[0])
	if err != nil {
		t.Fatalf("parsing info: %v", err)
	}
	if len(info.Asr) != 1 || info.Asr[0].Name != "vosk" {
		t.Fatalf("info programs = %+v, want one named vosk", info.Asr)
	}
	if len(info.Asr[0].Models) == 0 {
		t.Error("info lists no models")
	}
}

func TestHandler_CorrectedSnapsToTemplate(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	session := &stubSession{transcript: "lumos"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, dir, application.Options{
		Mode:   application.ModeCorrected,
		Cutoff: 50,
	})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "turn on all the lights" {
		t.Errorf("transcript = %q, want the template output", got)
	}
}

func TestHandler_CorrectedToleratesCloseMiss(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	session := &stubSession{transcript: "turn of tv"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, dir, application.Options{
		Mode:   application.ModeCorrected,
		Cutoff: 50,
	})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "turn off tv" {
		t.Errorf("transcript = %q, want the near miss snapped to %q", got, "turn off tv")
	}
}

func TestHandler_CorrectedForwardsRejectedText(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	session := &stubSession{transcript: "abracadabra zzz"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, dir, application.Options{
		Mode:   application.ModeCorrected,
		Cutoff: 0,
	})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "abracadabra zzz" {
		t.Errorf("transcript = %q, want the rejected text forwarded unchanged", got)
	}
}

func TestHandler_LimitedGrammar(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	session := &stubSession{transcript: "turn on tv"}
	rec := &stubRecognizer{session: session}
	models := &stubModels{model: "m", rec: rec}
	handler := newTestHandler(t, models, dir, application.Options{
		Mode:         application.ModeLimited,
		AllowUnknown: true,
	})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if rec.gotRate != wyoming.TargetRate {
		t.Errorf("session rate = %d, want %d", rec.gotRate, wyoming.TargetRate)
	}
	if len(rec.gotGrammar) == 0 {
		t.Fatal("limited mode passed no grammar to the recognizer")
	}
	if last := rec.gotGrammar[len(rec.gotGrammar)-1]; last != "[unk]" {
		t.Errorf("last grammar token = %q, want the unknown token", last)
	}
	joined := strings.Join(rec.gotGrammar, " ")
	for _, word := range []string{"lumos", "turn", "tv", "bedroom"} {
		if !strings.Contains(joined, word) {
			t.Errorf("grammar %q misses template word %q", joined, word)
		}
	}

	if got := transcriptText(t, replies(t, conn)); got != "turn on tv" {
		t.Errorf("transcript = %q, want the exact template", got)
	}
}

func TestHandler_LimitedRequiresExactSentence(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	// Word salad from in-vocabulary words: decodable, but not a template.
	session := &stubSession{transcript: "tv tv turn"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, dir, application.Options{
		Mode: application.ModeLimited,
	})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "tv tv turn" {
		t.Errorf("transcript = %q, want the non-template text forwarded", got)
	}
}

func TestHandler_UnknownTokenAnswersUnknownText(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	session := &stubSession{transcript: "turn [unk] tv"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, dir, application.Options{
		Mode:         application.ModeCorrected,
		Cutoff:       50,
		AllowUnknown: true,
	})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "did not catch that" {
		t.Errorf("transcript = %q, want the configured unknown text", got)
	}
}

func TestHandler_StopWithoutAudio(t *testing.T) {
	handler := newTestHandler(t, &stubModels{}, "", application.Options{})

	conn := clientScript(t,
		wyoming.NewTranscribe("", "en"),
		wyoming.NewAudioStop(),
	)
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "" {
		t.Errorf("transcript = %q, want empty for a stop without audio", got)
	}
}

func TestHandler_NumberWordsBecomeDigits(t *testing.T) {
	session := &stubSession{transcript: "twenty two degrees"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, "", application.Options{})

	conn := utterance(t, pcm16(160), targetFormat())
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := transcriptText(t, replies(t, conn)); got != "22 degrees" {
		t.Errorf("transcript = %q, want %q", got, "22 degrees")
	}
}

func TestHandler_ResamplesAudio(t *testing.T) {
	session := &stubSession{transcript: "hello"}
	models := &stubModels{model: "m", rec: &stubRecognizer{session: session}}
	handler := newTestHandler(t, models, "", application.Options{})

	format := wyoming.AudioFormat{Rate: 8000, Width: 2, Channels: 1}
	audio := pcm16(160)
	conn := utterance(t, audio, format)
	if err := handler.Serve(context.Background(), conn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if len(session.chunks) != 1 {
		t.Fatalf("chunks fed = %d, want 1", len(session.chunks))
	}
	if got, want := len(session.chunks[0]), 2*len(audio); got != want {
		t.Errorf("converted chunk = %d bytes, want %d after upsampling 8k to 16k", got, want)
	}
}

func TestHandler_ModelFailureEndsSession(t *testing.T) {
	models := &stubModels{err: errors.New("no such model")}
	handler := newTestHandler(t, models, "", application.Options{})

	conn := utterance(t, pcm16(160), targetFormat())
	err := handler.Serve(context.Background(), conn)
	if err == nil || !strings.Contains(err.Error(), "loading model") {
		t.Errorf("Serve() error = %v, want a model loading failure", err)
	}
}

func TestHandler_CorrectDryRun(t *testing.T) {
	dir := writeTestTemplates(t, testTemplates)
	handler := newTestHandler(t, &stubModels{}, dir, application.Options{
		Mode:   application.ModeCorrected,
		Cutoff: 40,
	})

	result, err := handler.Correct(context.Background(), "en", "lumos", 0)
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if !result.Accepted || result.Text != "turn on all the lights" {
		t.Errorf("Correct() = %+v, want the template output", result)
	}

	noCatalog := newTestHandler(t, &stubModels{}, "", application.Options{})
	if _, err := noCatalog.Correct(context.Background(), "en", "lumos", 0); err == nil {
		t.Error("Correct() without templates succeeded, want an error")
	}
}
