package wyoming

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DecodeWAV extracts the PCM stream from a RIFF/WAVE file. Only
// uncompressed PCM is supported; chunks other than fmt and data are
// skipped. The service itself never sees WAV, this is for client tooling.
func DecodeWAV(data []byte) (AudioFormat, []byte, error) {
	var format AudioFormat
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return format, nil, fmt.Errorf("wyoming: not a RIFF/WAVE file")
	}

	var pcm []byte
	haveFmt, haveData := false, false
	rest := data[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		rest = rest[8:]
		if size < 0 || size > len(rest) {
			// Tolerate a truncated final chunk.
			size = len(rest)
		}
		body := rest[:size]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return format, nil, fmt.Errorf("wyoming: short wav fmt chunk")
			}
			if codec := binary.LittleEndian.Uint16(body[0:2]); codec != 1 {
				return format, nil, fmt.Errorf("wyoming: unsupported wav codec %d (want PCM)", codec)
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.Rate = int(binary.LittleEndian.Uint32(body[4:8]))
			format.Width = int(binary.LittleEndian.Uint16(body[14:16])) / 8
			haveFmt = true
		case "data":
			pcm = body
			haveData = true
		}

		// Chunks are word aligned.
		if size%2 == 1 && size < len(rest) {
			size++
		}
		rest = rest[size:]
	}

	if !haveFmt {
		return format, nil, fmt.Errorf("wyoming: wav file has no fmt chunk")
	}
	if !haveData {
		return format, nil, fmt.Errorf("wyoming: wav file has no data chunk")
	}
	return format, pcm, nil
}

// EncodeWAV wraps PCM samples in a minimal RIFF/WAVE header.
func EncodeWAV(format AudioFormat, pcm []byte) []byte {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(format.Channels))
	binary.Write(&buf, binary.LittleEndian, int32(format.Rate))
	binary.Write(&buf, binary.LittleEndian, int32(format.Rate*format.Channels*format.Width))
	binary.Write(&buf, binary.LittleEndian, int16(format.Channels*format.Width))
	binary.Write(&buf, binary.LittleEndian, int16(format.Width*8))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
