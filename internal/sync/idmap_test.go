package sync

import "testing"

func TestIDMap_PassThroughForRealIDs(t *testing.T) {
	m := newIDMap()

	got, ok := m.Resolve("srv-123")
	if !ok || got != "srv-123" {
		t.Errorf("Resolve(srv-123) = %q, %v", got, ok)
	}
}

func TestIDMap_UnresolvedPlaceholder(t *testing.T) {
	m := newIDMap()

	if _, ok := m.Resolve("local-abc"); ok {
		t.Error("Resolve() succeeded for unmapped placeholder")
	}
}

func TestIDMap_LastWriteWins(t *testing.T) {
	m := newIDMap()

	// Duplicate creates claiming the same placeholder: the later mapping
	// wins.
	m.Put("local-abc", "srv-1")
	m.Put("local-abc", "srv-2")

	got, ok := m.Resolve("local-abc")
	if !ok || got != "srv-2" {
		t.Errorf("Resolve() = %q, %v; want srv-2", got, ok)
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !IsPlaceholder("local-xyz") {
		t.Error("IsPlaceholder(local-xyz) = false")
	}
	if IsPlaceholder("srv-xyz") {
		t.Error("IsPlaceholder(srv-xyz) = true")
	}
}
