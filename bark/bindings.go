//go:build !ios && !android && (amd64 || arm64)

package bark

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/speechgen/internal/bindings"
	"github.com/obinnaokechukwu/speechgen/internal/shim"
)

// Function bindings
var (
	barkGenerateAudio    func(ctx unsafe.Pointer, text string, nThreads int32) bool
	barkGetAudioData     func(ctx unsafe.Pointer) unsafe.Pointer
	barkGetAudioDataSize func(ctx unsafe.Pointer) int32
	barkFree             func(ctx unsafe.Pointer)

	bindingsOnce sync.Once
	bindingsErr  error
)

// loadBindings opens libbark and the shim and registers the C API.
func loadBindings() error {
	bindingsOnce.Do(func() {
		lib, err := bindings.Bark.Load()
		if err != nil {
			bindingsErr = fmt.Errorf("loading libbark: %w", err)
			return
		}

		purego.RegisterLibFunc(&barkGenerateAudio, lib, "bark_generate_audio")
		purego.RegisterLibFunc(&barkGetAudioData, lib, "bark_get_audio_data")
		purego.RegisterLibFunc(&barkGetAudioDataSize, lib, "bark_get_audio_data_size")
		purego.RegisterLibFunc(&barkFree, lib, "bark_free")

		// The shim is needed for bark_load_model only; Load reports its absence.
		_ = shim.Load()
	})
	return bindingsErr
}
