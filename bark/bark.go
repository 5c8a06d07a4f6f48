//go:build !ios && !android && (amd64 || arm64)

// Package bark drives bark.cpp, a GGML port of the Bark text-to-audio model.
//
// Each loaded model is a Context. A context keeps the audio of its last
// generation in native memory, so Generate copies the samples out before
// returning and contexts serialize their own generations.
package bark

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/internal/bindings"
	"github.com/obinnaokechukwu/speechgen/internal/shim"
)

// SampleRate is bark's output rate when the shim cannot report it.
const SampleRate = 24000

// Verbosity controls bark.cpp's own console output.
type Verbosity int32

// Verbosity levels, matching enum bark_verbosity_level.
const (
	VerbosityLow Verbosity = iota
	VerbosityMedium
	VerbosityHigh
)

// DefaultFineTemperature is the fine-model sampling temperature.
const DefaultFineTemperature float32 = 0.5

// Engine loads bark models.
type Engine struct {
	// Verbosity is passed to every context this engine loads.
	Verbosity Verbosity
	// FineTemperature is the sampling temperature of the fine acoustic model.
	FineTemperature float32
}

// NewEngine returns an engine with quiet output and default temperatures.
func NewEngine() *Engine {
	return &Engine{Verbosity: VerbosityLow, FineTemperature: DefaultFineTemperature}
}

// Name implements engine.SpeechEngine.
func (e *Engine) Name() string { return "bark" }

// Load implements engine.SpeechEngine.
func (e *Engine) Load(modelPath string, params engine.GenerationParams) (engine.SpeechContext, error) {
	if modelPath == "" {
		return nil, engine.ErrEmptyPath
	}
	if err := loadBindings(); err != nil {
		return nil, err
	}

	ptr, err := shim.BarkLoadModel(modelPath, params.Temperature, e.FineTemperature, params.Seed, int32(e.Verbosity))
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, fmt.Errorf("%w: bark_load_model(%q) returned NULL", engine.ErrLoadFailed, modelPath)
	}

	rate := shim.BarkSampleRate()
	if rate <= 0 {
		rate = SampleRate
	}
	return &Context{ptr: ptr, threads: threadCount(params.Threads), rate: rate}, nil
}

// Context is one loaded bark model.
type Context struct {
	mu      sync.Mutex
	ptr     unsafe.Pointer
	threads int
	rate    int
}

var _ engine.SpeechContext = (*Context)(nil)

// Generate implements engine.SpeechContext.
func (c *Context) Generate(text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ptr == nil {
		return nil, engine.ErrClosed
	}
	if barkGenerateAudio == nil {
		return nil, fmt.Errorf("bark: %w", bindings.ErrNotLoaded)
	}

	if !barkGenerateAudio(c.ptr, text, int32(c.threads)) {
		return nil, nil
	}

	data := barkGetAudioData(c.ptr)
	size := barkGetAudioDataSize(c.ptr)
	if data == nil || size <= 0 {
		return nil, fmt.Errorf("%w: data=%p size=%d", engine.ErrInconsistentOutput, data, size)
	}

	// The buffer belongs to the context and is overwritten by the next generation.
	out := make([]float32, size)
	copy(out, unsafe.Slice((*float32)(data), size))
	return out, nil
}

// SampleRate implements engine.SpeechContext.
func (c *Context) SampleRate() int { return c.rate }

// Threads returns the number of threads used for generation.
func (c *Context) Threads() int { return c.threads }

// Free implements engine.SpeechContext.
func (c *Context) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ptr == nil {
		return
	}
	if barkFree != nil {
		barkFree(c.ptr)
	}
	c.ptr = nil
}

func threadCount(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}
