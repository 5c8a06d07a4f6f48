//go:build !ios && !android && (amd64 || arm64)

// Package espeak drives espeak-ng as a text to IPA phonemizer.
//
// espeak-ng is a process-wide library: the selected voice, the phoneme
// buffer and the initialization state are all globals. A Phonemizer
// therefore does no locking of its own; callers must serialize every call,
// as speechgen.Bridge does.
package espeak

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/internal/bindings"
)

// Phonemizer implements engine.Phonemizer and engine.VoiceLister on espeak-ng.
type Phonemizer struct {
	sampleRate int
}

var (
	_ engine.Phonemizer   = (*Phonemizer)(nil)
	_ engine.VoiceLister  = (*Phonemizer)(nil)
	_ engine.SharedEngine = (*Phonemizer)(nil)
)

// NewPhonemizer returns a phonemizer. The library is loaded on Initialize.
func NewPhonemizer() *Phonemizer { return &Phonemizer{} }

// Initialize loads libespeak-ng and initializes it with the directory that
// contains espeak-ng-data. An empty path lets espeak-ng use its built-in default.
func (p *Phonemizer) Initialize(dataPath string) error {
	if err := loadBindings(); err != nil {
		return err
	}
	// NULL, not "", selects the compiled-in data directory.
	var path *byte
	if dataPath != "" {
		buf := append([]byte(dataPath), 0)
		path = &buf[0]
	}
	rate := espeakInitialize(audioOutputRetrieval, 0, path, initializePhonemeEvents|initializeDontExit)
	runtime.KeepAlive(path)
	// With DONT_EXIT a failed initialization returns an errno or
	// espeak_ng_STATUS code where the sample rate would be.
	if rate == eeInternalError || rate < minSampleRate {
		return fmt.Errorf("%w: espeak_Initialize(%q) failed, check your data path", engine.ErrInitFailed, dataPath)
	}
	p.sampleRate = int(rate)
	return nil
}

// EngineKey implements engine.SharedEngine. Every Phonemizer drives the same
// library globals.
func (p *Phonemizer) EngineKey() string { return "espeak-ng" }

// SampleRate is the rate espeak-ng reported at initialization.
func (p *Phonemizer) SampleRate() int { return p.sampleRate }

// SetVoice implements engine.Phonemizer.
func (p *Phonemizer) SetVoice(voice string) error {
	if espeakSetVoiceByName == nil {
		return bindingsNotLoaded()
	}
	if rc := espeakSetVoiceByName(voice); rc != eeOK {
		return fmt.Errorf("%w: espeak_SetVoiceByName returned %d", engine.ErrVoiceNotFound, rc)
	}
	return nil
}

// PhonemizeClause implements engine.Phonemizer.
func (p *Phonemizer) PhonemizeClause(text string) (engine.Clause, error) {
	if espeakTextToPhonemes == nil {
		return engine.Clause{}, bindingsNotLoaded()
	}
	if text == "" {
		return engine.Clause{Terminator: engine.ClauseTypeEOF}, nil
	}

	// espeak reads the text through a pointer it advances past the consumed
	// clause. Both the buffer and the pointer cell are handed to C.
	buf := make([]byte, len(text)+1)
	copy(buf, text)
	base := unsafe.Pointer(&buf[0])
	cursor := new(unsafe.Pointer)
	*cursor = base

	var pinner runtime.Pinner
	pinner.Pin(&buf[0])
	pinner.Pin(cursor)
	defer pinner.Unpin()

	var phonemes unsafe.Pointer
	terminator := int32(-1)
	if espeakTextToPhonemesWithTerminator != nil {
		term := new(int32)
		pinner.Pin(term)
		phonemes = espeakTextToPhonemesWithTerminator(cursor, charsAuto, phonemesIPA, term)
		terminator = *term
	} else {
		phonemes = espeakTextToPhonemes(cursor, charsAuto, phonemesIPA)
	}

	c := engine.Clause{Phonemes: bindings.GoString(phonemes)}
	if next := *cursor; next != nil {
		consumed := uintptr(next) - uintptr(base)
		if consumed <= uintptr(len(text)) {
			c.Remaining = text[consumed:]
		}
	}

	switch {
	case terminator >= 0:
		c.Terminator = int(terminator)
	case c.Remaining == "":
		c.Terminator = engine.ClauseTypeEOF
	default:
		c.Terminator = engine.ClauseIntonationNone
	}
	return c, nil
}

// Voices implements engine.VoiceLister.
func (p *Phonemizer) Voices() ([]engine.Voice, error) {
	if espeakListVoices == nil {
		return nil, bindingsNotLoaded()
	}

	list := espeakListVoices(nil)
	if list == nil {
		return nil, nil
	}

	var voices []engine.Voice
	for i := uintptr(0); ; i++ {
		v := ptrAt(list, i*unsafe.Sizeof(uintptr(0)))
		if v == nil {
			break
		}
		voices = append(voices, engine.Voice{
			Name:       bindings.GoString(ptrAt(v, offsetVoiceName)),
			Identifier: bindings.GoString(ptrAt(v, offsetVoiceIdentifier)),
			Languages:  parseLanguages(ptrAt(v, offsetVoiceLanguages)),
		})
	}
	return voices, nil
}

// Version returns the espeak-ng version string, or "" if unknown.
func (p *Phonemizer) Version() string {
	if espeakInfo == nil {
		return ""
	}
	return bindings.GoString(espeakInfo(nil))
}

// Terminate implements engine.Phonemizer.
func (p *Phonemizer) Terminate() error {
	if espeakTerminate == nil {
		return nil
	}
	if rc := espeakTerminate(); rc != eeOK {
		return fmt.Errorf("espeak: espeak_Terminate returned %d", rc)
	}
	return nil
}

func bindingsNotLoaded() error {
	return fmt.Errorf("espeak: %w", bindings.ErrNotLoaded)
}
