//go:build !ios && !android && (amd64 || arm64)

package espeak

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/speechgen/internal/bindings"
)

// espeak_AUDIO_OUTPUT
const audioOutputRetrieval = 1

// espeak_Initialize options
const (
	initializePhonemeEvents = 0x0001 // espeakINITIALIZE_PHONEME_EVENTS
	initializeDontExit      = 0x8000 // espeakINITIALIZE_DONT_EXIT
)

// TextToPhonemes modes
const (
	charsAuto   = 0    // espeakCHARS_AUTO
	phonemesIPA = 0x02 // espeakPHONEMES_IPA
)

// espeak_ERROR
const (
	eeOK            = 0
	eeInternalError = -1
)

// minSampleRate separates a real sample rate from an error code returned
// by espeak_Initialize.
const minSampleRate = 1000

// Function bindings
var (
	espeakInitialize                   func(output, buflength int32, path *byte, options int32) int32
	espeakSetVoiceByName               func(name string) int32
	espeakTextToPhonemesWithTerminator func(textptr *unsafe.Pointer, textmode, phonememode int32, terminator *int32) unsafe.Pointer
	espeakTextToPhonemes               func(textptr *unsafe.Pointer, textmode, phonememode int32) unsafe.Pointer
	espeakListVoices                   func(voiceSpec unsafe.Pointer) unsafe.Pointer
	espeakTerminate                    func() int32
	espeakInfo                         func(path *unsafe.Pointer) unsafe.Pointer

	bindingsOnce sync.Once
	bindingsErr  error
)

func loadBindings() error {
	bindingsOnce.Do(func() {
		lib, err := bindings.Espeak.Load()
		if err != nil {
			bindingsErr = fmt.Errorf("loading libespeak-ng: %w", err)
			return
		}

		purego.RegisterLibFunc(&espeakInitialize, lib, "espeak_Initialize")
		purego.RegisterLibFunc(&espeakSetVoiceByName, lib, "espeak_SetVoiceByName")
		purego.RegisterLibFunc(&espeakTextToPhonemes, lib, "espeak_TextToPhonemes")
		purego.RegisterLibFunc(&espeakListVoices, lib, "espeak_ListVoices")
		purego.RegisterLibFunc(&espeakTerminate, lib, "espeak_Terminate")

		// Upstream since 1.52; older builds fall back to espeak_TextToPhonemes.
		bindings.RegisterOptionalLibFunc(&espeakTextToPhonemesWithTerminator, lib, "espeak_TextToPhonemesWithTerminator")
		bindings.RegisterOptionalLibFunc(&espeakInfo, lib, "espeak_Info")
	})
	return bindingsErr
}

// espeak_VOICE field offsets (64-bit)
const (
	offsetVoiceName       = 0  // const char *name
	offsetVoiceLanguages  = 8  // const char *languages
	offsetVoiceIdentifier = 16 // const char *identifier
)

func ptrAt(base unsafe.Pointer, offset uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Add(base, offset))
}

// parseLanguages decodes espeak_VOICE.languages: a sequence of
// (priority byte, NUL-terminated name) pairs ending with a zero priority.
func parseLanguages(p unsafe.Pointer) []string {
	if p == nil {
		return nil
	}
	var langs []string
	for *(*byte)(p) != 0 {
		p = unsafe.Add(p, 1)
		lang := bindings.GoString(p)
		langs = append(langs, lang)
		p = unsafe.Add(p, len(lang)+1)
	}
	return langs
}
