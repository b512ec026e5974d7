package services

import (
	"fmt"
	"sync"
)

// Mutex is a mutual-exclusion lock that remembers when a holder panicked.
// Once poisoned every later Do call fails with ErrLock instead of running
// against state that may be half-updated.
type Mutex struct {
	mu       sync.Mutex
	poisoned bool
	name     string
}

// NewMutex returns a lock labelled with name for error messages.
func NewMutex(name string) *Mutex {
	return &Mutex{name: name}
}

// Do runs fn while holding the lock. A panic inside fn poisons the lock and is
// reported as ErrLock.
func (m *Mutex) Do(fn func() error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return Wrap(ErrLock, m.label(), "acquire", "previous holder panicked", nil)
	}
	defer func() {
		if r := recover(); r != nil {
			m.poisoned = true
			err = Wrap(ErrLock, m.label(), "critical section", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return fn()
}

// Poisoned reports whether a previous holder panicked.
func (m *Mutex) Poisoned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poisoned
}

func (m *Mutex) label() string {
	if m.name == "" {
		return "mutex"
	}
	return m.name
}
