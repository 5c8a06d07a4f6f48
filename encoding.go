package speechgen

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/obinnaokechukwu/speechgen/engine"
)

// BytesPerSample is the width of one encoded float32 sample.
const BytesPerSample = 4

// EncodeAudio packs samples as tightly packed little-endian float32 with no
// header. The result is 4*len(samples) bytes; no samples yield an empty,
// non-nil buffer.
func EncodeAudio(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*BytesPerSample:], math.Float32bits(s))
	}
	return out
}

// DecodeAudio unpacks a buffer produced by EncodeAudio.
func DecodeAudio(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("speechgen: audio buffer length %d is not a multiple of %d", len(data), BytesPerSample)
	}
	out := make([]float32, len(data)/BytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*BytesPerSample:]))
	}
	return out, nil
}

// EncodePCM16 converts float samples in [-1, 1] to signed 16-bit little-endian
// PCM. Out-of-range samples are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		f := float64(s) * math.MaxInt16
		switch {
		case f > math.MaxInt16:
			f = math.MaxInt16
		case f < math.MinInt16:
			f = math.MinInt16
		case f != f: // NaN
			f = 0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(f)))
	}
	return out
}

// EncodePhonemization renders a clause as the fixed 3-tuple
// (remaining text, IPA phonemes, terminator as a decimal string).
func EncodePhonemization(c engine.Clause) [3]string {
	return [3]string{c.Remaining, c.Phonemes, strconv.Itoa(c.Terminator)}
}

// DecodePhonemization parses a tuple produced by EncodePhonemization.
// An empty terminator slot decodes as 0.
func DecodePhonemization(t [3]string) (engine.Clause, error) {
	c := engine.Clause{Remaining: t[0], Phonemes: t[1]}
	if t[2] == "" {
		return c, nil
	}
	term, err := strconv.Atoi(t[2])
	if err != nil {
		return engine.Clause{}, fmt.Errorf("speechgen: bad terminator %q: %w", t[2], err)
	}
	c.Terminator = term
	return c, nil
}
