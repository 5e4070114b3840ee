package wyoming_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/wirgen/wyoming-vosk/internal/wyoming"
)

func TestDecodeWAVRoundTrip(t *testing.T) {
	format := wyoming.AudioFormat{Rate: 8000, Width: 2, Channels: 2}
	audio := pcm16(1, -1, 2000, -2000, 300, -300)

	got, pcm, err := wyoming.DecodeWAV(wyoming.EncodeWAV(format, audio))
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if got != format {
		t.Errorf("format = %+v, want %+v", got, format)
	}
	if !bytes.Equal(pcm, audio) {
		t.Errorf("pcm = %v, want %v", pcm, audio)
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	audio := pcm16(10, -10)
	file := wyoming.EncodeWAV(wyoming.AudioFormat{Rate: 16000, Width: 2, Channels: 1}, audio)

	// Splice a LIST chunk between fmt and data, the spot metadata usually
	// occupies.
	list := append([]byte("LIST"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(list[4:], 4)
	list = append(list, 'I', 'N', 'F', 'O')
	spliced := append([]byte{}, file[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, file[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:], uint32(len(spliced)-8))

	_, pcm, err := wyoming.DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if !bytes.Equal(pcm, audio) {
		t.Errorf("pcm = %v, want %v", pcm, audio)
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	valid := wyoming.EncodeWAV(wyoming.AudioFormat{Rate: 16000, Width: 2, Channels: 1}, pcm16(1, 2))

	compressed := append([]byte(nil), valid...)
	// Codec tag lives right after the fmt chunk header.
	binary.LittleEndian.PutUint16(compressed[20:], 6) // a-law

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"not riff", []byte("ID3\x03whatever else"), "not a RIFF/WAVE"},
		{"no data chunk", valid[:36], "no data chunk"},
		{"compressed", compressed, "unsupported wav codec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := wyoming.DecodeWAV(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("DecodeWAV() error = %v, want %q", err, tt.want)
			}
		})
	}
}
