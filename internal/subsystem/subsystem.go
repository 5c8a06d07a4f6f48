// Package subsystem guards process-wide native engines that have no context
// object of their own, such as espeak-ng, which keeps all of its state in
// library globals.
//
// A State records whether the engine has been initialized. Initialization is
// idempotent, every use requires it, and Shutdown resets the flag so the engine
// can be brought up again later.
//
// A Shared wraps a State with an owner count, and For hands out one Shared
// per engine key, so every user of a global engine in the process sees the
// same flag and the same lock.
//
// Uses are serialized. espeak-ng keeps the selected voice and the phoneme
// output buffer in globals, so voice selection and text conversion have to run
// as one exclusive unit.
package subsystem

import (
	"errors"
	"sync"
)

// ErrNotReady is returned when the engine is used before initialization.
var ErrNotReady = errors.New("subsystem: not initialized")

// State is the guarded initialization flag of a global engine.
// The zero value is an uninitialized State ready for use.
type State struct {
	mu    sync.RWMutex
	ready bool
}

// Init runs initialize unless the engine is already up.
// It reports whether initialize actually ran. A failing initialize leaves the
// State uninitialized.
func (s *State) Init(initialize func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return false, nil
	}
	if err := initialize(); err != nil {
		return true, err
	}
	s.ready = true
	return true, nil
}

// Use runs fn with exclusive access to the engine.
// Returns ErrNotReady if the engine has not been initialized.
func (s *State) Use(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrNotReady
	}
	return fn()
}

// Shutdown runs terminate if the engine is up and resets the flag.
// The flag is reset even when terminate fails; the engine is not trusted
// after a failed shutdown.
func (s *State) Shutdown(terminate func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return false, nil
	}
	s.ready = false
	if terminate == nil {
		return true, nil
	}
	return true, terminate()
}

// Ready reports whether the engine is initialized.
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
