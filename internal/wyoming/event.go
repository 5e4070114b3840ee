// Package wyoming implements the Wyoming voice-assistant protocol: newline
// delimited JSON event headers, each optionally followed by a JSON data
// block and a binary payload.
package wyoming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Limits on the length fields advertised by a peer. Real events are a few
// kilobytes; anything past these is a broken or hostile client.
const (
	maxDataLength    = 1 << 20
	maxPayloadLength = 1 << 22
)

// Event is one protocol message: a type, optional JSON data and an
// optional binary payload.
type Event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

// header is the wire form of the first line of an event.
type header struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// Reader decodes events from a stream.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Read returns the next event. A clean close between events surfaces as
// io.EOF; a close mid-event is io.ErrUnexpectedEOF.
func (r *Reader) Read() (Event, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return Event{}, io.ErrUnexpectedEOF
		}
		return Event{}, err
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return Event{}, fmt.Errorf("wyoming: decoding event header: %w", err)
	}
	if h.Type == "" {
		return Event{}, fmt.Errorf("wyoming: event without a type")
	}
	if h.DataLength < 0 || h.DataLength > maxDataLength {
		return Event{}, fmt.Errorf("wyoming: data length %d out of range", h.DataLength)
	}
	if h.PayloadLength < 0 || h.PayloadLength > maxPayloadLength {
		return Event{}, fmt.Errorf("wyoming: payload length %d out of range", h.PayloadLength)
	}

	event := Event{Type: h.Type, Data: h.Data}
	if h.DataLength > 0 {
		// Peers send data either inline or as a trailing block; the block
		// form wins when both appear.
		data := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r.br, data); err != nil {
			return Event{}, fmt.Errorf("wyoming: reading event data: %w", err)
		}
		event.Data = data
	}
	if h.PayloadLength > 0 {
		payload := make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r.br, payload); err != nil {
			return Event{}, fmt.Errorf("wyoming: reading event payload: %w", err)
		}
		event.Payload = payload
	}
	return event, nil
}

// Writer encodes events onto a stream, flushing after every event.
type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

func (w *Writer) Write(event Event) error {
	h := header{Type: event.Type}
	if len(event.Data) > 0 {
		h.DataLength = len(event.Data)
	}
	if len(event.Payload) > 0 {
		h.PayloadLength = len(event.Payload)
	}
	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("wyoming: encoding event header: %w", err)
	}

	if _, err := w.bw.Write(line); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	if len(event.Data) > 0 {
		if _, err := w.bw.Write(event.Data); err != nil {
			return err
		}
	}
	if len(event.Payload) > 0 {
		if _, err := w.bw.Write(event.Payload); err != nil {
			return err
		}
	}
	return w.bw.Flush()
}
