package audio

import (
	"fmt"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SaveWAV writes mono samples to path as a 16-bit PCM WAV file.
func SaveWAV(path string, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return fmt.Errorf("audio: no samples to write to %s", path)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	generated := &sherpa.GeneratedAudio{Samples: samples, SampleRate: sampleRate}
	if !generated.Save(path) {
		return fmt.Errorf("audio: failed to write %s", path)
	}
	return nil
}
