//go:build !ios && !android && (amd64 || arm64)

// Package bindings locates and opens the native engine libraries with purego.
//
// Each engine library is loaded independently and at most once: a program
// that only phonemizes never needs libbark, and a failed lookup is remembered
// so later calls return the same error without searching again.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/speechgen/internal/platform"
)

// ErrNotLoaded is returned when an engine function is called before its library was loaded.
var ErrNotLoaded = errors.New("speechgen: engine library not loaded")

// ErrLibraryNotFound is returned when an engine library cannot be found.
var ErrLibraryNotFound = errors.New("speechgen: engine library not found")

// LibraryPathEnv names the environment variable holding extra library directories.
// Its entries are searched before the system locations.
const LibraryPathEnv = "SPEECHGEN_LIBRARY_PATH"

// Library is a lazily loaded shared library.
type Library struct {
	Name     string
	Versions []int

	once   sync.Once
	mu     sync.Mutex
	handle uintptr
	path   string
	err    error
}

// Engine libraries.
var (
	Bark   = &Library{Name: "bark"}
	Espeak = &Library{Name: "espeak-ng", Versions: []int{1}}
)

// Load opens the library on first use and returns its handle.
// It is safe to call multiple times; subsequent calls return the first result.
func (l *Library) Load() (uintptr, error) {
	l.once.Do(func() {
		handle, path, err := loadLibrary(l.Name, l.Versions)
		l.mu.Lock()
		l.handle, l.path, l.err = handle, path, err
		l.mu.Unlock()
	})
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle, l.err
}

// IsLoaded reports whether the library was opened successfully.
func (l *Library) IsLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != 0
}

// Path returns where the library was loaded from, or "" if it was not.
func (l *Library) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// loadLibrary opens the first candidate that exists in a search directory,
// then lets the dynamic loader resolve the bare names itself.
func loadLibrary(name string, versions []int) (uintptr, string, error) {
	names := platform.CandidateNames(name, versions)

	for _, path := range existing(names) {
		if h, err := dlopen(path); err == nil {
			return h, path, nil
		}
	}

	var errs error
	for _, n := range names {
		h, err := dlopen(n)
		if err == nil {
			return h, n, nil
		}
		errs = err
	}
	return 0, "", fmt.Errorf("%w: %s (%v)", ErrLibraryNotFound, name, errs)
}

// dlopen uses global symbol visibility: bark pulls in ggml and espeak-ng may
// be linked against pcaudiolib, and those must resolve against each other.
func dlopen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// existing returns, in search order, every candidate file that is present.
func existing(names []string) []string {
	var found []string
	for _, dir := range LibrarySearchPaths() {
		for _, n := range names {
			p := filepath.Join(dir, n)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				found = append(found, p)
			}
		}
	}
	return found
}

// FindLibrary reports where a library would be loaded from without opening
// it. doctor uses it.
func FindLibrary(name string, versions []int) (string, error) {
	if found := existing(platform.CandidateNames(name, versions)); len(found) > 0 {
		return found[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// searchLayout is where one OS keeps shared libraries: the loader's
// environment variable plus fixed install prefixes.
type searchLayout struct {
	env    string
	exeDir bool
	prefix []string
}

var layouts = map[string]searchLayout{
	"linux": {env: "LD_LIBRARY_PATH", prefix: []string{
		"/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu",
		"/usr/local/lib", "/usr/lib", "/lib/x86_64-linux-gnu", "/lib",
	}},
	"darwin": {env: "DYLD_LIBRARY_PATH", prefix: []string{
		"/opt/homebrew/lib", "/usr/local/lib",
		"/opt/homebrew/opt/espeak-ng/lib", "/usr/local/opt/espeak-ng/lib",
	}},
	"windows": {env: "PATH", exeDir: true, prefix: []string{`C:\Program Files\eSpeak NG`}},
	"freebsd": {env: "LD_LIBRARY_PATH", prefix: []string{"/usr/local/lib", "/usr/lib"}},
}

// LibrarySearchPaths returns the directories searched for engine libraries,
// SPEECHGEN_LIBRARY_PATH entries first.
func LibrarySearchPaths() []string {
	dirs := filepath.SplitList(os.Getenv(LibraryPathEnv))

	l, ok := layouts[runtime.GOOS]
	if !ok {
		return dirs
	}
	dirs = append(dirs, filepath.SplitList(os.Getenv(l.env))...)
	if l.exeDir {
		if exe, err := os.Executable(); err == nil {
			dirs = append(dirs, filepath.Dir(exe))
		}
	}
	return append(dirs, l.prefix...)
}

// RegisterOptionalLibFunc binds fptr to the named symbol if the library
// exports it and reports whether it did. Missing symbols leave fptr nil.
func RegisterOptionalLibFunc(fptr any, handle uintptr, name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	purego.RegisterLibFunc(fptr, handle, name)
	return true
}

// GoString copies a NUL-terminated C string into Go memory.
func GoString(ptr unsafe.Pointer) string {
	if ptr == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(ptr, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(ptr), n))
}
