package wyoming

import (
	"encoding/binary"
	"fmt"
)

// The PCM format recognizers consume.
const (
	TargetRate     = 16000
	TargetWidth    = 2
	TargetChannels = 1
)

// ConvertPCM converts raw PCM samples described by format into 16 kHz
// 16-bit mono. Audio already in the target format passes through
// untouched.
func ConvertPCM(format AudioFormat, audio []byte) ([]byte, error) {
	if format.Rate == TargetRate && format.Width == TargetWidth && format.Channels == TargetChannels {
		return audio, nil
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("wyoming: unsupported channel count %d", format.Channels)
	}
	if format.Rate < 1 {
		return nil, fmt.Errorf("wyoming: unsupported sample rate %d", format.Rate)
	}

	samples, err := decodeSamples(format.Width, audio)
	if err != nil {
		return nil, err
	}
	if format.Channels > 1 {
		samples = mixdown(samples, format.Channels)
	}
	if format.Rate != TargetRate {
		samples = resample(samples, format.Rate, TargetRate)
	}
	return encodeSamples(samples), nil
}

func decodeSamples(width int, audio []byte) ([]int16, error) {
	switch width {
	case 1:
		// Unsigned 8-bit, midpoint 128.
		out := make([]int16, len(audio))
		for i, b := range audio {
			out[i] = (int16(b) - 128) << 8
		}
		return out, nil
	case 2:
		if len(audio)%2 != 0 {
			return nil, fmt.Errorf("wyoming: truncated 16-bit sample data (%d bytes)", len(audio))
		}
		out := make([]int16, len(audio)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(audio[2*i:]))
		}
		return out, nil
	case 4:
		if len(audio)%4 != 0 {
			return nil, fmt.Errorf("wyoming: truncated 32-bit sample data (%d bytes)", len(audio))
		}
		out := make([]int16, len(audio)/4)
		for i := range out {
			out[i] = int16(int32(binary.LittleEndian.Uint32(audio[4*i:])) >> 16)
		}
		return out, nil
	}
	return nil, fmt.Errorf("wyoming: unsupported sample width %d", width)
}

func encodeSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// mixdown averages interleaved channels into mono.
func mixdown(samples []int16, channels int) []int16 {
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// resample converts the sample rate by linear interpolation.
func resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n < 1 {
		return nil
	}
	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}
