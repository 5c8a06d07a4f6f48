//go:build !ios && !android && (amd64 || arm64)

// Package platform describes how native engine libraries are named and what
// the foreign function layer can do on the current operating system.
package platform

import (
	"runtime"
	"strconv"
	"unsafe"
)

// SupportsStructByValue reports whether purego can pass C structs by value.
// Only Darwin can. Elsewhere bark_load_model, which takes
// bark_context_params by value, has to go through the sgshim library.
const SupportsStructByValue = runtime.GOOS == "darwin" &&
	(runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64")

// Is64Bit reports a 64-bit address space. Handles pack a slot and a
// generation into one int64 and engine pointers are read as 8-byte words.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// naming is one operating system's shared library file naming scheme.
type naming struct {
	prefix string
	ext    string
	// versioned renders prefix+name with a major version.
	versioned func(n naming, name string, version int) string
}

var schemes = map[string]naming{
	"darwin": {"lib", ".dylib", func(n naming, name string, v int) string {
		return n.prefix + name + "." + strconv.Itoa(v) + n.ext
	}},
	"windows": {"", ".dll", func(n naming, name string, v int) string {
		return n.prefix + name + "-" + strconv.Itoa(v) + n.ext
	}},
}

// ELF systems: libname.so.N
var elf = naming{"lib", ".so", func(n naming, name string, v int) string {
	return n.prefix + name + n.ext + "." + strconv.Itoa(v)
}}

var current = schemeFor(runtime.GOOS)

func schemeFor(goos string) naming {
	if n, ok := schemes[goos]; ok {
		return n
	}
	return elf
}

// LibraryExtension is the shared library file extension, including the dot.
var LibraryExtension = current.ext

// LibraryPrefix is prepended to library names ("lib" except on Windows).
var LibraryPrefix = current.prefix

// FormatLibraryName returns the file name of a shared library. A version of 0
// gives the unversioned development name.
//
//	linux:   FormatLibraryName("espeak-ng", 1) == "libespeak-ng.so.1"
//	darwin:  FormatLibraryName("espeak-ng", 1) == "libespeak-ng.1.dylib"
//	windows: FormatLibraryName("espeak-ng", 1) == "espeak-ng-1.dll"
func FormatLibraryName(name string, version int) string {
	return current.format(name, version)
}

func (n naming) format(name string, version int) string {
	if version > 0 {
		return n.versioned(n, name, version)
	}
	return n.prefix + name + n.ext
}

// CandidateNames lists the filenames to try for a library, most specific
// first, ending with the unversioned name.
func CandidateNames(name string, versions []int) []string {
	names := make([]string, 0, len(versions)+1)
	for _, v := range versions {
		if v > 0 {
			names = append(names, FormatLibraryName(name, v))
		}
	}
	return append(names, FormatLibraryName(name, 0))
}

// Target returns the os-arch pair used to name prebuilt library directories.
func Target() string {
	return runtime.GOOS + "-" + runtime.GOARCH
}
