// Package enginetest provides deterministic in-memory engines for tests.
//
// SpeechEngine produces audio derived from the model path, so tests can tell
// which context produced a buffer. Phonemizer splits text on punctuation and
// "phonemizes" by lower-casing, and it tracks the selected voice in a global
// the way espeak-ng does.
package enginetest

import (
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/obinnaokechukwu/speechgen/engine"
)

// SampleRate is the rate reported by fake contexts.
const SampleRate = 16000

// SpeechEngine is a fake engine.SpeechEngine.
type SpeechEngine struct {
	// FailPaths lists model paths whose Load fails.
	FailPaths map[string]bool
	// PartialPaths lists model paths whose Load fails after building a
	// context, returning both.
	PartialPaths map[string]bool
	// Silent makes Generate report "no audio produced" for these texts.
	Silent map[string]bool
	// Inconsistent makes Generate report success with no data.
	Inconsistent bool
	// PanicOn makes Generate panic for this text.
	PanicOn string

	mu       sync.Mutex
	contexts []*SpeechContext
	loads    atomic.Int32
}

// Name implements engine.SpeechEngine.
func (e *SpeechEngine) Name() string { return "fake" }

// Load implements engine.SpeechEngine.
func (e *SpeechEngine) Load(modelPath string, params engine.GenerationParams) (engine.SpeechContext, error) {
	if modelPath == "" {
		return nil, engine.ErrEmptyPath
	}
	if e.FailPaths[modelPath] {
		return nil, engine.ErrLoadFailed
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(modelPath))
	ctx := &SpeechContext{
		engine: e,
		Model:  modelPath,
		Params: params,
		Voice:  float32(h.Sum32()%1000) / 1000,
	}

	e.mu.Lock()
	e.contexts = append(e.contexts, ctx)
	e.mu.Unlock()
	if e.PartialPaths[modelPath] {
		return ctx, engine.ErrLoadFailed
	}
	e.loads.Add(1)
	return ctx, nil
}

// Loads returns how many contexts were successfully loaded.
func (e *SpeechEngine) Loads() int { return int(e.loads.Load()) }

// Contexts returns every context ever loaded.
func (e *SpeechEngine) Contexts() []*SpeechContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*SpeechContext(nil), e.contexts...)
}

// Live returns how many loaded contexts have not been freed.
func (e *SpeechEngine) Live() int {
	n := 0
	for _, c := range e.Contexts() {
		if !c.Freed() {
			n++
		}
	}
	return n
}

// SpeechContext is a fake engine.SpeechContext.
type SpeechContext struct {
	engine *SpeechEngine

	Model  string
	Params engine.GenerationParams
	// Voice is the constant every generated sample carries.
	Voice float32

	freed     atomic.Int32
	generates atomic.Int32
}

// Generate implements engine.SpeechContext. It returns one sample per input
// byte, each equal to Voice.
func (c *SpeechContext) Generate(text string) ([]float32, error) {
	if c.freed.Load() > 0 {
		return nil, engine.ErrClosed
	}
	c.generates.Add(1)

	if c.engine.PanicOn != "" && text == c.engine.PanicOn {
		panic("enginetest: generate panic")
	}
	if c.engine.Silent[text] || text == "" {
		return nil, nil
	}
	if c.engine.Inconsistent {
		return nil, engine.ErrInconsistentOutput
	}

	out := make([]float32, len(text))
	for i := range out {
		out[i] = c.Voice
	}
	return out, nil
}

// SampleRate implements engine.SpeechContext.
func (c *SpeechContext) SampleRate() int { return SampleRate }

// Free implements engine.SpeechContext.
func (c *SpeechContext) Free() { c.freed.Add(1) }

// Freed reports whether Free was called.
func (c *SpeechContext) Freed() bool { return c.freed.Load() > 0 }

// FreeCount returns how many times Free was called.
func (c *SpeechContext) FreeCount() int { return int(c.freed.Load()) }

// Generates returns how many times Generate was called.
func (c *SpeechContext) Generates() int { return int(c.generates.Load()) }

// Phonemizer is a fake engine.Phonemizer.
type Phonemizer struct {
	// VoiceNames lists the accepted voices. Empty accepts "en-us" only.
	VoiceNames []string
	// FailInit makes Initialize fail.
	FailInit bool

	initCalls      atomic.Int32
	terminateCalls atomic.Int32

	// voice mimics espeak-ng's global voice selection. It is deliberately
	// unsynchronized so the race detector flags callers that do not serialize.
	voice string
}

// ErrInitFailed is returned by Initialize when FailInit is set.
var ErrInitFailed = errors.New("enginetest: initialize failed")

// Initialize implements engine.Phonemizer.
func (p *Phonemizer) Initialize(dataPath string) error {
	p.initCalls.Add(1)
	if p.FailInit || dataPath == "" {
		return ErrInitFailed
	}
	return nil
}

// InitCalls returns how many times Initialize ran.
func (p *Phonemizer) InitCalls() int { return int(p.initCalls.Load()) }

// TerminateCalls returns how many times Terminate ran.
func (p *Phonemizer) TerminateCalls() int { return int(p.terminateCalls.Load()) }

// SetVoice implements engine.Phonemizer.
func (p *Phonemizer) SetVoice(voice string) error {
	names := p.VoiceNames
	if len(names) == 0 {
		names = []string{"en-us"}
	}
	for _, n := range names {
		if n == voice {
			p.voice = voice
			return nil
		}
	}
	return engine.ErrVoiceNotFound
}

// PhonemizeClause implements engine.Phonemizer. The phonemes of a clause are
// the selected voice followed by ':' and the lower-cased clause text.
func (p *Phonemizer) PhonemizeClause(text string) (engine.Clause, error) {
	if text == "" {
		return engine.Clause{Terminator: engine.ClauseTypeEOF}, nil
	}

	end := strings.IndexFunc(text, func(r rune) bool { return strings.ContainsRune(".,?!:;", r) })
	if end < 0 {
		return engine.Clause{
			Phonemes:   p.voice + ":" + strings.ToLower(strings.TrimSpace(text)),
			Terminator: engine.ClausePeriod,
		}, nil
	}

	var term int
	switch text[end] {
	case '.':
		term = engine.ClausePeriod
	case ',':
		term = engine.ClauseComma
	case '?':
		term = engine.ClauseQuestion
	case '!':
		term = engine.ClauseExclamation
	case ':':
		term = engine.ClauseColon
	case ';':
		term = engine.ClauseSemicolon
	}

	rest := strings.TrimLeftFunc(text[end+1:], unicode.IsSpace)
	return engine.Clause{
		Remaining:  rest,
		Phonemes:   p.voice + ":" + strings.ToLower(strings.TrimSpace(text[:end])),
		Terminator: term,
	}, nil
}

// Terminate implements engine.Phonemizer.
func (p *Phonemizer) Terminate() error {
	p.terminateCalls.Add(1)
	return nil
}

// Voices implements engine.VoiceLister.
func (p *Phonemizer) Voices() ([]engine.Voice, error) {
	names := p.VoiceNames
	if len(names) == 0 {
		names = []string{"en-us"}
	}
	out := make([]engine.Voice, 0, len(names))
	for _, n := range names {
		out = append(out, engine.Voice{Name: n, Identifier: n, Languages: []string{n}})
	}
	return out, nil
}
