//go:build !ios && !android && (amd64 || arm64)

// Package shim binds libsgshim, a small C library that reaches bark.cpp entry
// points purego cannot call directly.
//
// bark_load_model takes bark_context_params by value, which purego supports
// only on Darwin. sgshim_bark_load_model starts from
// bark_context_default_params and accepts the tunables as scalars.
//
// Phonemization never needs the shim. Loading a bark model does. Build it with:
//
//	cd shim && make BARK_DIR=/path/to/bark.cpp
package shim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/speechgen/internal/bindings"
	"github.com/obinnaokechukwu/speechgen/internal/platform"
)

var (
	// ErrShimNotLoaded is returned by calls that need the shim when it is absent.
	ErrShimNotLoaded = errors.New("speechgen: sgshim not loaded, bark models cannot be loaded")

	// ErrShimNotFound is recorded when no search location holds the shim.
	ErrShimNotFound = errors.New("speechgen: sgshim library not found")
)

// DirEnv overrides the search: when set, only this directory is tried.
const DirEnv = "SPEECHGEN_SHIM_DIR"

const libraryName = "sgshim"

// state is the outcome of the one load attempt.
type state struct {
	mu     sync.Mutex
	tried  bool
	handle uintptr
	path   string
	err    error
}

var lib state

var (
	sgshimVersion               func() unsafe.Pointer
	sgshimBarkLoadModel         func(path string, temp, fineTemp float32, seed uint32, verbosity int32) unsafe.Pointer
	sgshimBarkDefaultSampleRate func() int32
)

// Load looks for the shim and opens it. It never fails: a missing or broken
// shim is kept in LoadError and surfaces from BarkLoadModel. Only the first
// call searches.
//
// Search order:
//  1. $SPEECHGEN_SHIM_DIR, exclusively when set
//  2. the engine library search path (see bindings.LibrarySearchPaths)
//  3. the executable's directory
//  4. shim/prebuilt/<os>-<arch>/ and shim/ in this module's source tree
//  5. the working directory
func Load() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	if lib.tried {
		return nil
	}
	lib.tried = true

	path, err := locate()
	if err != nil {
		lib.err = err
		return nil
	}
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		lib.err = fmt.Errorf("speechgen: open %s: %w", path, err)
		return nil
	}

	bindings.RegisterOptionalLibFunc(&sgshimVersion, h, "sgshim_version")
	bindings.RegisterOptionalLibFunc(&sgshimBarkLoadModel, h, "sgshim_bark_load_model")
	bindings.RegisterOptionalLibFunc(&sgshimBarkDefaultSampleRate, h, "sgshim_bark_default_sample_rate")
	lib.handle, lib.path = h, path
	return nil
}

// IsLoaded reports whether the shim is open.
func IsLoaded() bool {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.handle != 0
}

// Path is where the shim was opened from, or "".
func Path() string {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.path
}

// LoadError is why the shim is not loaded, or nil.
func LoadError() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.err
}

// Status describes the shim in one line for diagnostics.
func Status() string {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	switch {
	case lib.handle != 0 && sgshimVersion != nil:
		return fmt.Sprintf("loaded from %s (version %s)", lib.path, bindings.GoString(sgshimVersion()))
	case lib.handle != 0:
		return "loaded from " + lib.path
	case lib.err != nil:
		return "not loaded: " + lib.err.Error()
	}
	return "not loaded yet"
}

// ExpectedLibraryName is the shim's file name on this platform.
func ExpectedLibraryName() string {
	return platform.FormatLibraryName(libraryName, 0)
}

// BuildInstructions explains how to build and install the shim here.
func BuildInstructions() string {
	install := "export " + DirEnv + "=$PWD"
	switch runtime.GOOS {
	case "linux":
		install = "sudo make install, or " + install
	case "windows":
		install = "copy " + ExpectedLibraryName() + " next to bark.dll, or set " + DirEnv
	case "darwin":
	default:
		return fmt.Sprintf("building the shim is not supported on %s", platform.Target())
	}
	return fmt.Sprintf(`Building %s:
  1. build bark.cpp as a shared library:
     cmake -B build -DBUILD_SHARED_LIBS=ON && cmake --build build
  2. build the shim against it:
     cd shim && make BARK_DIR=/path/to/bark.cpp
  3. %s`, ExpectedLibraryName(), install)
}

// BarkLoadModel calls bark_load_model with default context parameters apart
// from the given ones. A nil pointer with a nil error means bark refused the
// model.
func BarkLoadModel(path string, temp, fineTemp float32, seed uint32, verbosity int32) (unsafe.Pointer, error) {
	if !IsLoaded() {
		return nil, fmt.Errorf("%w\n%s", ErrShimNotLoaded, BuildInstructions())
	}
	if sgshimBarkLoadModel == nil {
		return nil, errors.New("speechgen: sgshim has no sgshim_bark_load_model")
	}
	return sgshimBarkLoadModel(path, temp, fineTemp, seed, verbosity), nil
}

// BarkSampleRate is bark's default output rate, or 0 when unknown.
func BarkSampleRate() int {
	if !IsLoaded() || sgshimBarkDefaultSampleRate == nil {
		return 0
	}
	return int(sgshimBarkDefaultSampleRate())
}

// locate returns the first existing candidate file.
func locate() (string, error) {
	names := platform.CandidateNames(libraryName, []int{1})

	dirs := searchDirs()
	for _, dir := range dirs {
		for _, name := range names {
			if p := filepath.Join(dir, name); fileExists(p) {
				return p, nil
			}
		}
	}

	if dir := os.Getenv(DirEnv); dir != "" {
		return "", fmt.Errorf("%w: %s=%s does not contain %s", ErrShimNotFound, DirEnv, dir, ExpectedLibraryName())
	}
	return "", fmt.Errorf("%w: no %s in %d directories; set %s or build it (cd shim && make)",
		ErrShimNotFound, ExpectedLibraryName(), len(dirs), DirEnv)
}

func searchDirs() []string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return []string{dir}
	}

	dirs := bindings.LibrarySearchPaths()
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if _, file, _, ok := runtime.Caller(0); ok {
		root := filepath.Join(filepath.Dir(file), "..", "..")
		dirs = append(dirs,
			filepath.Join(root, "shim", "prebuilt", platform.Target()),
			filepath.Join(root, "shim"))
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
