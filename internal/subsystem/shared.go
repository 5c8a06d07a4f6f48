package subsystem

import (
	"reflect"
	"sync"
)

// Shared is the process-wide State of one global engine together with the
// number of owners holding it up. The engine is initialized by the first
// Acquire and terminated when the last owner calls Release.
type Shared struct {
	State

	// refMu orders Acquire and Release. It is always taken before State.mu.
	refMu sync.Mutex
	refs  int
}

// Acquire initializes the engine if it is down and registers one more owner.
// It reports whether initialize ran. On error no owner is added.
func (s *Shared) Acquire(initialize func() error) (bool, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	ran, err := s.Init(initialize)
	if err != nil {
		return ran, err
	}
	s.refs++
	return ran, nil
}

// Release drops one owner. The last owner shuts the engine down with terminate
// and Release reports whether that happened.
func (s *Shared) Release(terminate func() error) (bool, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	if s.refs == 0 {
		return false, nil
	}
	s.refs--
	if s.refs > 0 {
		return false, nil
	}
	return s.Shutdown(terminate)
}

// Owners returns the number of owners holding the engine up.
func (s *Shared) Owners() int {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.refs
}

var (
	tableMu sync.Mutex
	table   = map[any]*Shared{}
)

// For returns the Shared state registered under key, creating it on first use.
// Callers passing the same key get the same State. A key that is not
// comparable cannot be shared and gets a State of its own.
func For(key any) *Shared {
	if key == nil || !reflect.TypeOf(key).Comparable() {
		return &Shared{}
	}

	tableMu.Lock()
	defer tableMu.Unlock()

	s, ok := table[key]
	if !ok {
		s = &Shared{}
		table[key] = s
	}
	return s
}
