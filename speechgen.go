// Package speechgen bridges Go programs to native speech engines through
// opaque integer handles.
//
// Two kinds of engine are supported:
//
//   - Speech generation engines (bark, sherpa-onnx) load one context per model.
//     Each context lives in a handle registry; callers hold only a Handle.
//   - Phonemizers (espeak-ng) are process-wide subsystems that are initialized
//     once and then used through plain calls.
//
// A Bridge owns one registry. Generation runs under the registry's shared
// lock, so independent handles synthesize in parallel, while loading and
// releasing take the exclusive lock, so a context is never freed while a call
// is still using it.
//
// The phonemizer's state is process-wide: bridges over the same global engine
// share one initialization flag and one lock, because espeak-ng keeps the
// selected voice in library globals. The engine is terminated when the last
// bridge holding it closes.
//
// Every operation returns either a result or an *Error whose Kind says what
// went wrong:
//
//	b := speechgen.NewBridge(bark.NewEngine(), espeak.NewPhonemizer())
//	defer b.Close()
//
//	h, err := b.InitSpeechGeneration("ggml_weights.bin", speechgen.WithSeed(42))
//	if err != nil { ... }
//	audio, err := b.GenerateSpeech(h, "Hello there.")
//	...
//	err = b.ReleaseSpeechGeneration(h)
package speechgen

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/internal/handles"
	"github.com/obinnaokechukwu/speechgen/internal/subsystem"
)

// Handle identifies a live speech generation context.
type Handle = handles.Handle

// Bridge is the entry point for all engine operations.
// It is safe for concurrent use.
type Bridge struct {
	id         string
	log        *zap.Logger
	speech     engine.SpeechEngine
	phonemizer engine.Phonemizer
	defaults   engine.GenerationParams

	contexts *handles.Registry[engine.SpeechContext]

	// phonemes is shared with every bridge over the same engine. holding
	// records whether this bridge counts as one of its owners.
	phonemes *subsystem.Shared
	holdMu   sync.Mutex
	holding  bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used by the bridge.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithDefaultParams sets the generation parameters used when
// InitSpeechGeneration is called without options.
func WithDefaultParams(p engine.GenerationParams) Option {
	return func(b *Bridge) { b.defaults = p }
}

// GenerationOption adjusts the parameters of one InitSpeechGeneration call.
type GenerationOption func(*engine.GenerationParams)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GenerationOption {
	return func(p *engine.GenerationParams) { p.Temperature = t }
}

// WithSeed sets the random seed.
func WithSeed(seed uint32) GenerationOption {
	return func(p *engine.GenerationParams) { p.Seed = seed }
}

// WithThreads sets the number of engine threads.
func WithThreads(n int) GenerationOption {
	return func(p *engine.GenerationParams) { p.Threads = n }
}

// WithSpeaker selects a speaker on multi-speaker models.
func WithSpeaker(id int) GenerationOption {
	return func(p *engine.GenerationParams) { p.Speaker = id }
}

// WithSpeed scales the speaking rate.
func WithSpeed(speed float32) GenerationOption {
	return func(p *engine.GenerationParams) { p.Speed = speed }
}

// NewBridge creates a bridge over the given engines. Either may be nil, in
// which case the operations that need it fail with KindEngineInit.
func NewBridge(speech engine.SpeechEngine, phonemizer engine.Phonemizer, opts ...Option) *Bridge {
	b := &Bridge{
		id:         uuid.NewString(),
		log:        Logger(),
		speech:     speech,
		phonemizer: phonemizer,
		defaults:   engine.DefaultParams(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With(zap.String("bridge", b.id))
	b.contexts = handles.New(b.freeContext)
	if phonemizer != nil {
		b.phonemes = subsystem.For(phonemizerKey(phonemizer))
	}
	return b
}

// phonemizerKey is the process-wide identity of a phonemizer's engine.
func phonemizerKey(p engine.Phonemizer) any {
	if s, ok := p.(engine.SharedEngine); ok {
		return s.EngineKey()
	}
	return p
}

// ID returns the bridge's unique identifier, as it appears in logs.
func (b *Bridge) ID() string { return b.id }

// Len returns the number of live speech generation contexts.
func (b *Bridge) Len() int { return b.contexts.Len() }

// PhonemizerReady reports whether the phonemizer's engine is initialized in
// this process, by this bridge or another one.
func (b *Bridge) PhonemizerReady() bool {
	return b.phonemes != nil && b.phonemes.Ready()
}

// InitSpeechGeneration loads a model and returns a handle to its context.
// Loading and registration are atomic: on failure no handle exists and no
// native context is left behind.
func (b *Bridge) InitSpeechGeneration(modelPath string, opts ...GenerationOption) (h Handle, err error) {
	const op = "init speech generation"
	defer func() { b.observe(op, h, err) }()

	if b.speech == nil {
		return handles.Invalid, newError(KindEngineInit, op, "speech engine not configured", nil)
	}
	if modelPath == "" {
		return handles.Invalid, newError(KindInvalidInput, op, "model path should not be empty", nil)
	}
	if err := checkString("model path", modelPath); err != nil {
		return handles.Invalid, newError(KindInvalidInput, op, err.Error(), nil)
	}

	params := b.defaults
	for _, opt := range opts {
		opt(&params)
	}

	var ctx engine.SpeechContext
	err = guard(func() error {
		var lerr error
		ctx, lerr = b.speech.Load(modelPath, params)
		return lerr
	})
	if err != nil {
		if ctx != nil {
			_ = b.freeContext(ctx)
		}
		return handles.Invalid, newError(KindEngineInit, op, "failed to create native instance", err)
	}

	h, err = b.contexts.Insert(ctx)
	if err != nil {
		if ctx != nil {
			_ = b.freeContext(ctx)
		}
		return handles.Invalid, newError(KindEngineInit, op, "failed to create native instance", err)
	}
	return h, nil
}

// GenerateSpeech synthesizes text with the context behind h and returns the
// audio as packed little-endian float32 samples. An engine that produces no
// audio yields an empty buffer and no error.
func (b *Bridge) GenerateSpeech(h Handle, text string) (audio []byte, err error) {
	const op = "generate speech"
	defer func() { b.observe(op, h, err) }()

	err = b.contexts.Use(h, func(ctx engine.SpeechContext) error {
		if err := checkString("text", text); err != nil {
			return &inputError{err}
		}
		var samples []float32
		gerr := guard(func() error {
			var e error
			samples, e = ctx.Generate(text)
			return e
		})
		if gerr != nil {
			return gerr
		}
		audio = EncodeAudio(samples)
		return nil
	})
	if err != nil {
		audio = nil
		var ie *inputError
		switch {
		case errors.Is(err, handles.ErrInvalidHandle):
			return nil, &Error{Kind: KindInvalidHandle, Op: op, Handle: h, Message: "invalid handle"}
		case errors.As(err, &ie):
			return nil, &Error{Kind: KindInvalidInput, Op: op, Handle: h, Message: ie.Error()}
		case errors.Is(err, engine.ErrInconsistentOutput):
			return nil, &Error{Kind: KindEngineOperation, Op: op, Handle: h, Message: "invalid audio data or size", Err: err}
		default:
			return nil, &Error{Kind: KindEngineOperation, Op: op, Handle: h, Message: "failed to generate audio", Err: err}
		}
	}
	return audio, nil
}

// SampleRate returns the sample rate of the audio produced by h.
func (b *Bridge) SampleRate(h Handle) (int, error) {
	var rate int
	err := b.contexts.Use(h, func(ctx engine.SpeechContext) error {
		rate = ctx.SampleRate()
		return nil
	})
	if err != nil {
		return 0, &Error{Kind: KindInvalidHandle, Op: "sample rate", Handle: h, Message: "invalid handle"}
	}
	return rate, nil
}

// ReleaseSpeechGeneration frees the context behind h. Releasing a handle that
// is not live is an error, so double releases surface instead of passing silently.
func (b *Bridge) ReleaseSpeechGeneration(h Handle) (err error) {
	const op = "release speech generation"
	defer func() { b.observe(op, h, err) }()

	found, ferr := b.contexts.Remove(h)
	if !found {
		return &Error{Kind: KindInvalidHandle, Op: op, Handle: h, Message: "unable to free native pointer: handle not found"}
	}
	if ferr != nil {
		return &Error{Kind: KindEngineOperation, Op: op, Handle: h, Message: "failed to free native context", Err: ferr}
	}
	return nil
}

// InitPhonemizer initializes the phonemizer with its data directory and makes
// the bridge one of the engine's owners. Once the engine is up, in this
// bridge or another, further calls do not reach it, whatever the path.
func (b *Bridge) InitPhonemizer(dataPath string) (err error) {
	const op = "init phonemizer"
	defer func() { b.observe(op, handles.Invalid, err) }()

	if b.phonemizer == nil {
		return newError(KindEngineInit, op, "phonemizer not configured", nil)
	}
	if err := checkString("data path", dataPath); err != nil {
		return newError(KindInvalidInput, op, err.Error(), nil)
	}

	initialize := func() error {
		return guard(func() error { return b.phonemizer.Initialize(dataPath) })
	}

	// An owner keeps the engine up, so a holding bridge has nothing to do.
	b.holdMu.Lock()
	var ran bool
	if !b.holding {
		ran, err = b.phonemes.Acquire(initialize)
		b.holding = err == nil
	}
	b.holdMu.Unlock()
	if err != nil {
		return newError(KindEngineInit, op, "failed to initialize phonemizer, check your data path", err)
	}
	if !ran {
		b.log.Debug("phonemizer already initialized")
	}
	return nil
}

// Phonemize converts the first clause of text with the given voice and returns
// the tuple (remaining text, IPA phonemes, terminator as a decimal string).
func (b *Bridge) Phonemize(voice, text string) ([3]string, error) {
	c, err := b.PhonemizeClause(voice, text)
	if err != nil {
		return [3]string{}, err
	}
	return EncodePhonemization(c), nil
}

// PhonemizeClause is Phonemize with a structured result.
func (b *Bridge) PhonemizeClause(voice, text string) (c engine.Clause, err error) {
	const op = "phonemize"
	defer func() { b.observe(op, handles.Invalid, err) }()

	if b.phonemizer == nil {
		return engine.Clause{}, newError(KindEngineInit, op, "phonemizer not configured", nil)
	}

	err = b.phonemes.Use(func() error {
		if err := checkString("voice", voice); err != nil {
			return &inputError{err}
		}
		if err := guard(func() error { return b.phonemizer.SetVoice(voice) }); err != nil {
			return fmt.Errorf("%w: %q: %w", engine.ErrVoiceNotFound, voice, err)
		}
		if err := checkString("text", text); err != nil {
			return &inputError{err}
		}
		return guard(func() error {
			var perr error
			c, perr = b.phonemizer.PhonemizeClause(text)
			return perr
		})
	})
	if err != nil {
		var ie *inputError
		switch {
		case errors.Is(err, subsystem.ErrNotReady):
			return engine.Clause{}, newError(KindSubsystemNotReady, op, "phonemizer is not initialized", nil)
		case errors.As(err, &ie):
			return engine.Clause{}, newError(KindInvalidInput, op, ie.Error(), nil)
		case errors.Is(err, engine.ErrVoiceNotFound):
			return engine.Clause{}, newError(KindEngineOperation, op, "failed to set voice", err)
		default:
			return engine.Clause{}, newError(KindEngineOperation, op, "failed to phonemize text", err)
		}
	}
	return c, nil
}

// Voices lists the phonemizer's installed voices, if it can enumerate them.
func (b *Bridge) Voices() (voices []engine.Voice, err error) {
	const op = "list voices"
	defer func() { b.observe(op, handles.Invalid, err) }()

	if b.phonemizer == nil {
		return nil, newError(KindEngineInit, op, "phonemizer not configured", nil)
	}
	lister, ok := b.phonemizer.(engine.VoiceLister)
	if !ok {
		return nil, newError(KindEngineOperation, op, "phonemizer cannot list voices", nil)
	}
	err = b.phonemes.Use(func() error {
		return guard(func() error {
			var lerr error
			voices, lerr = lister.Voices()
			return lerr
		})
	})
	if errors.Is(err, subsystem.ErrNotReady) {
		return nil, newError(KindSubsystemNotReady, op, "phonemizer is not initialized", nil)
	}
	if err != nil {
		return nil, newError(KindEngineOperation, op, "failed to list voices", err)
	}
	return voices, nil
}

// Close releases every context still registered and gives up the bridge's
// hold on the phonemizer. The engine is terminated only when no other bridge
// holds it. Close is the teardown safety net; callers should release their
// own handles. The bridge stays usable: new contexts can be loaded and the
// phonemizer initialized again.
func (b *Bridge) Close() error {
	n, err := b.contexts.Clear()
	if n > 0 {
		b.log.Warn("released leaked speech contexts at teardown", zap.Int("count", n))
	}

	b.holdMu.Lock()
	held := b.holding
	b.holding = false
	b.holdMu.Unlock()

	if held {
		ran, terr := b.phonemes.Release(func() error {
			return guard(b.phonemizer.Terminate)
		})
		if terr != nil {
			err = multierr.Append(err, fmt.Errorf("terminate phonemizer: %w", terr))
		}
		if ran {
			b.log.Debug("phonemizer terminated")
		}
	}

	if err != nil {
		return newError(KindEngineOperation, "close", "teardown failed", err)
	}
	return nil
}

func (b *Bridge) freeContext(ctx engine.SpeechContext) error {
	return guard(func() error {
		ctx.Free()
		return nil
	})
}

func (b *Bridge) observe(op string, h Handle, err error) {
	fields := []zap.Field{zap.String("op", op)}
	if h != handles.Invalid {
		fields = append(fields, zap.Stringer("handle", h))
	}
	if err != nil {
		fields = append(fields, zap.Stringer("kind", KindOf(err)), zap.Error(err))
		b.log.Warn("operation failed", fields...)
		return
	}
	b.log.Debug("operation ok", fields...)
}

// inputError marks argument failures detected under a lock.
type inputError struct{ err error }

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// checkString rejects strings that cannot be passed to C as NUL-terminated text.
func checkString(name, s string) error {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return fmt.Errorf("failed to get %s string: NUL byte at offset %d", name, i)
	}
	return nil
}

// guard converts a panic in engine code into an error so no partially built
// result escapes the boundary.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return fn()
}
