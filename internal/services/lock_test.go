package services_test

import (
	"errors"
	"testing"

	"pixora/internal/services"
)

func TestMutexRunsCriticalSection(t *testing.T) {
	m := services.NewMutex("registry")
	calls := 0
	if err := m.Do(func() error { calls++; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	sentinel := errors.New("inner")
	if err := m.Do(func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected inner error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestMutexPoisonsAfterPanic(t *testing.T) {
	m := services.NewMutex("registry")
	err := m.Do(func() error { panic("boom") })
	if !errors.Is(err, services.ErrLock) {
		t.Fatalf("expected lock error from panic, got %v", err)
	}
	if !m.Poisoned() {
		t.Fatal("expected mutex to be poisoned")
	}
	ran := false
	err = m.Do(func() error { ran = true; return nil })
	if !errors.Is(err, services.ErrLock) {
		t.Fatalf("expected lock error after poison, got %v", err)
	}
	if ran {
		t.Fatal("critical section should not run once poisoned")
	}
}
