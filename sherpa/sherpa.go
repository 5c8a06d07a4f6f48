// Package sherpa drives sherpa-onnx offline TTS with VITS models, including
// piper voices.
//
// A model path names the .onnx file. Its directory is expected to hold
// tokens.txt and, for piper voices, espeak-ng-data. If <model>.json exists it
// is read as a piper voice configuration for the sampling scales and rate.
package sherpa

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/piper"
)

// Engine loads sherpa-onnx offline TTS models.
type Engine struct {
	// Provider is the onnxruntime execution provider, "cpu" by default.
	Provider string
	// Debug enables sherpa-onnx's own logging.
	Debug bool
	// MaxNumSentences caps how many sentences are batched per generation.
	MaxNumSentences int
	// Tokens, Lexicon and DataDir override the files found next to the model.
	Tokens  string
	Lexicon string
	DataDir string
}

// NewEngine returns an engine using the CPU provider.
func NewEngine() *Engine {
	return &Engine{Provider: "cpu", MaxNumSentences: 1}
}

// Name implements engine.SpeechEngine.
func (e *Engine) Name() string { return "sherpa" }

// Load implements engine.SpeechEngine.
func (e *Engine) Load(modelPath string, params engine.GenerationParams) (engine.SpeechContext, error) {
	if modelPath == "" {
		return nil, engine.ErrEmptyPath
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrLoadFailed, err)
	}

	voice, err := voiceConfig(modelPath)
	if err != nil {
		return nil, err
	}

	config := e.config(modelPath, params, voice)
	tts := sherpa.NewOfflineTts(&config)
	if tts == nil {
		return nil, fmt.Errorf("%w: sherpa-onnx rejected %s", engine.ErrLoadFailed, modelPath)
	}

	speed := params.Speed
	if speed <= 0 {
		speed = 1
	}
	return &Context{
		tts:     tts,
		speaker: voice.ClampSpeaker(params.Speaker),
		speed:   speed,
		rate:    voice.Audio.SampleRate,
	}, nil
}

func (e *Engine) config(modelPath string, params engine.GenerationParams, voice *piper.Config) sherpa.OfflineTtsConfig {
	dir := filepath.Dir(modelPath)

	config := sherpa.OfflineTtsConfig{}
	config.Model.Vits.Model = modelPath
	config.Model.Vits.Tokens = firstNonEmpty(e.Tokens, filepath.Join(dir, "tokens.txt"))
	config.Model.Vits.Lexicon = firstNonEmpty(e.Lexicon, existing(filepath.Join(dir, "lexicon.txt")))
	config.Model.Vits.DataDir = firstNonEmpty(e.DataDir, existing(filepath.Join(dir, "espeak-ng-data")))
	config.Model.Vits.NoiseScale = voice.Inference.NoiseScale
	config.Model.Vits.NoiseScaleW = voice.Inference.NoiseW
	config.Model.Vits.LengthScale = voice.Inference.LengthScale

	config.Model.NumThreads = params.Threads
	if config.Model.NumThreads <= 0 {
		config.Model.NumThreads = 1
	}
	if e.Debug {
		config.Model.Debug = 1
	}
	config.Model.Provider = firstNonEmpty(e.Provider, "cpu")
	config.MaxNumSentences = e.MaxNumSentences
	if config.MaxNumSentences <= 0 {
		config.MaxNumSentences = 1
	}
	return config
}

// voiceConfig reads <model>.json when present and falls back to piper defaults.
func voiceConfig(modelPath string) (*piper.Config, error) {
	path := modelPath + ".json"
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return piper.DefaultConfig(), nil
	}
	c, err := piper.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrLoadFailed, err)
	}
	return c, nil
}

// Context is one loaded sherpa-onnx synthesizer.
type Context struct {
	mu      sync.Mutex
	tts     *sherpa.OfflineTts
	speaker int
	speed   float32
	rate    int
}

var _ engine.SpeechContext = (*Context)(nil)

// Generate implements engine.SpeechContext.
func (c *Context) Generate(text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tts == nil {
		return nil, engine.ErrClosed
	}

	audio := c.tts.Generate(text, c.speaker, c.speed)
	if audio == nil || len(audio.Samples) == 0 {
		return nil, nil
	}
	if audio.SampleRate > 0 {
		c.rate = audio.SampleRate
	}

	out := make([]float32, len(audio.Samples))
	copy(out, audio.Samples)
	return out, nil
}

// SampleRate implements engine.SpeechContext.
func (c *Context) SampleRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Free implements engine.SpeechContext.
func (c *Context) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tts == nil {
		return
	}
	sherpa.DeleteOfflineTts(c.tts)
	c.tts = nil
}

func existing(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
