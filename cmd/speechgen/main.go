//go:build !ios && !android && (amd64 || arm64)

// Package main provides the speechgen command line tool.
//
// Usage:
//
//	speechgen [flags] <command> [args]
//
// Commands:
//
//	generate   - Synthesize speech with bark or sherpa-onnx
//	phonemize  - Convert text to IPA phonemes with espeak-ng
//	voices     - List installed espeak-ng voices
//	doctor     - Report which native libraries can be found
//
// Configuration:
//
//	Settings are read from a YAML file given with --config. Flags override
//	the file. ${VAR} references in the file are expanded from the environment.
package main

import (
	"fmt"
	"os"

	"github.com/obinnaokechukwu/speechgen/cmd/speechgen/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
