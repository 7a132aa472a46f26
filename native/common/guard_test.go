package common

import (
	"errors"
	"testing"
)

func TestGuardPauseSet(t *testing.T) {
	if err := Guard(nil, "harberger"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
	set := NewPauseSet(" Harberger ")
	if err := Guard(set, "harberger"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if err := Guard(set, "keeper"); err != nil {
		t.Fatalf("unexpected pause: %v", err)
	}
	set.Set("harberger", false)
	if err := Guard(set, "harberger"); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	var empty *PauseSet
	if empty.IsPaused("harberger") {
		t.Fatalf("nil set must report unpaused")
	}
}
