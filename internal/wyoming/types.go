package wyoming

import (
	"encoding/json"
	"fmt"
)

// Event types spoken by an ASR service.
const (
	TypeDescribe   = "describe"
	TypeInfo       = "info"
	TypeTranscribe = "transcribe"
	TypeAudioStart = "audio-start"
	TypeAudioChunk = "audio-chunk"
	TypeAudioStop  = "audio-stop"
	TypeTranscript = "transcript"
)

// Transcribe asks for the next audio stream to be transcribed with a given
// language and, optionally, a specific model.
type Transcribe struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

func NewTranscribe(name, language string) Event {
	return Event{Type: TypeTranscribe, Data: mustData(Transcribe{Name: name, Language: language})}
}

func ParseTranscribe(event Event) (Transcribe, error) {
	var t Transcribe
	if len(event.Data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(event.Data, &t); err != nil {
		return t, fmt.Errorf("wyoming: decoding transcribe: %w", err)
	}
	return t, nil
}

// Transcript carries the recognized text back to the client.
type Transcript struct {
	Text string `json:"text"`
}

func NewTranscript(text string) Event {
	return Event{Type: TypeTranscript, Data: mustData(Transcript{Text: text})}
}

func ParseTranscript(event Event) (Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(event.Data, &t); err != nil {
		return t, fmt.Errorf("wyoming: decoding transcript: %w", err)
	}
	return t, nil
}

// AudioFormat describes PCM audio: sample rate in Hz, sample width in
// bytes and channel count.
type AudioFormat struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// AudioChunk is one block of PCM samples in the stream.
type AudioChunk struct {
	AudioFormat
	Timestamp int64 `json:"timestamp,omitempty"`

	// Audio rides in the event payload, not the JSON data.
	Audio []byte `json:"-"`
}

func NewAudioChunk(chunk AudioChunk) Event {
	return Event{Type: TypeAudioChunk, Data: mustData(chunk), Payload: chunk.Audio}
}

func ParseAudioChunk(event Event) (AudioChunk, error) {
	var chunk AudioChunk
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &chunk); err != nil {
			return chunk, fmt.Errorf("wyoming: decoding audio chunk: %w", err)
		}
	}
	chunk.Audio = event.Payload
	return chunk, nil
}

func NewAudioStart(format AudioFormat) Event {
	return Event{Type: TypeAudioStart, Data: mustData(format)}
}

func NewAudioStop() Event {
	return Event{Type: TypeAudioStop}
}

func NewDescribe() Event {
	return Event{Type: TypeDescribe}
}

// Attribution credits the upstream project a service or model comes from.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AsrModel describes one recognition model in the info response.
type AsrModel struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Version     *string     `json:"version"`
	Languages   []string    `json:"languages"`
}

// AsrProgram describes a speech recognition service in the info response.
type AsrProgram struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Version     string      `json:"version"`
	Models      []AsrModel  `json:"models"`
}

// Info is the response to a describe event.
type Info struct {
	Asr []AsrProgram `json:"asr"`
}

func NewInfo(info Info) Event {
	return Event{Type: TypeInfo, Data: mustData(info)}
}

func ParseInfo(event Event) (Info, error) {
	var info Info
	if err := json.Unmarshal(event.Data, &info); err != nil {
		return info, fmt.Errorf("wyoming: decoding info: %w", err)
	}
	return info, nil
}

// mustData marshals a fixed event struct; these types cannot fail to
// encode.
func mustData(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
