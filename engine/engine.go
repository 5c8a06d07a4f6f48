// Package engine defines the contracts between speechgen and the native speech
// engines it drives.
//
// Two lifecycle shapes exist:
//
//   - [SpeechEngine] loads independent [SpeechContext] values, one per model.
//     Any number of contexts may be alive at once (bark, sherpa-onnx).
//   - [Phonemizer] is a process-wide subsystem initialized once and then used
//     through plain function calls (espeak-ng).
//
// Implementations are thin wrappers over the engine's C API. Locking and handle
// management live in the speechgen package, not here.
package engine

import "errors"

var (
	// ErrEmptyPath is returned when a model or data path is empty.
	ErrEmptyPath = errors.New("engine: path should not be empty")

	// ErrLoadFailed is returned when the native engine rejects a model.
	ErrLoadFailed = errors.New("engine: failed to create native instance")

	// ErrInitFailed is returned when a global engine fails to initialize.
	ErrInitFailed = errors.New("engine: initialization failed")

	// ErrInconsistentOutput is returned when an engine reports success but
	// hands back no data.
	ErrInconsistentOutput = errors.New("engine: invalid audio data or size")

	// ErrVoiceNotFound is returned when a phonemizer voice cannot be selected.
	ErrVoiceNotFound = errors.New("engine: failed to set voice")

	// ErrClosed is returned when a context is used after Free.
	ErrClosed = errors.New("engine: context is closed")
)

// GenerationParams configures a speech context at load time.
type GenerationParams struct {
	// Temperature controls sampling randomness. Higher values are more varied.
	Temperature float32
	// Seed makes generation reproducible for identical input.
	Seed uint32
	// Threads is the number of CPU threads the engine may use. Zero lets the
	// engine decide.
	Threads int
	// Speaker selects a speaker on multi-speaker models.
	Speaker int
	// Speed scales speaking rate where the engine supports it. Zero means 1.0.
	Speed float32
}

// Default generation parameters.
const (
	DefaultTemperature float32 = 0.7
	DefaultSeed        uint32  = 0
	DefaultThreads             = 4
)

// DefaultParams returns the parameters used when none are given.
func DefaultParams() GenerationParams {
	return GenerationParams{
		Temperature: DefaultTemperature,
		Seed:        DefaultSeed,
		Threads:     DefaultThreads,
		Speed:       1.0,
	}
}

// SpeechEngine creates speech generation contexts.
type SpeechEngine interface {
	// Name identifies the engine family in logs and errors.
	Name() string

	// Load opens a model and builds a new context.
	Load(modelPath string, params GenerationParams) (SpeechContext, error)
}

// SpeechContext is one loaded model.
type SpeechContext interface {
	// Generate synthesizes text into mono float32 PCM samples.
	// A nil slice with a nil error means the engine produced no audio.
	Generate(text string) ([]float32, error)

	// SampleRate is the rate of the samples returned by Generate, in Hz.
	SampleRate() int

	// Free releases the native context. It is called at most once.
	Free()
}

// Phonemizer is a process-wide text to phoneme front end.
//
// Implementations are not safe for concurrent use; callers serialize access.
type Phonemizer interface {
	// Initialize brings the subsystem up with its data directory.
	Initialize(dataPath string) error

	// SetVoice selects the voice used by later PhonemizeClause calls.
	SetVoice(voice string) error

	// PhonemizeClause converts the first clause of text to IPA phonemes.
	PhonemizeClause(text string) (Clause, error)

	// Terminate shuts the subsystem down.
	Terminate() error
}

// SharedEngine is implemented by phonemizers whose instances all drive the
// same process-wide library. Instances reporting the same EngineKey share one
// initialization flag and one lock, so espeak-ng is initialized once per
// process however many phonemizers wrap it.
type SharedEngine interface {
	EngineKey() string
}

// VoiceLister is implemented by phonemizers that can enumerate their voices.
type VoiceLister interface {
	Voices() ([]Voice, error)
}

// Voice describes an installed phonemizer voice.
type Voice struct {
	Name       string
	Identifier string
	Languages  []string
}

// Clause is the result of converting one clause of text.
type Clause struct {
	// Remaining is the unconsumed rest of the input. Empty once the input is exhausted.
	Remaining string
	// Phonemes is the IPA rendering of the consumed clause.
	Phonemes string
	// Terminator describes how the clause ended. See the Clause* constants.
	Terminator int
}
