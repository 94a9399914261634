package core

import (
	"errors"
	"fmt"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 1000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

// TestParseID tests dataset ID parsing
func TestParseID(t *testing.T) {
	if _, err := ParseID("   "); err == nil {
		t.Error("Expected error for blank ID")
	}

	id, err := ParseID(" ds1 ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "ds1" {
		t.Errorf("Expected 'ds1', got '%s'", id)
	}
}

func TestVersionID(t *testing.T) {
	if got := VersionID("ds1", 2); got != "ds1_v2" {
		t.Errorf("Expected ds1_v2, got %s", got)
	}
}

func TestPlanMismatchError(t *testing.T) {
	err := fmt.Errorf("execute: %w", NewPlanMismatch("age", "city"))

	if !errors.Is(err, ErrPlanMismatch) {
		t.Fatal("Expected wrapped PlanMismatchError to match ErrPlanMismatch")
	}

	var mismatch *PlanMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatal("Expected errors.As to find PlanMismatchError")
	}
	if len(mismatch.Columns) != 2 || mismatch.Columns[0] != "age" {
		t.Errorf("Unexpected columns: %v", mismatch.Columns)
	}
}

func TestHashDeterministic(t *testing.T) {
	a := NewHash([]byte("abc"))
	b := NewHash([]byte("abc"))
	if !a.Equals(b) {
		t.Errorf("Expected equal hashes, got %s and %s", a, b)
	}
	if a.Equals(NewHash([]byte("abd"))) {
		t.Error("Expected different hashes for different input")
	}
}

func TestHashShort(t *testing.T) {
	h := NewHash([]byte("abc"))
	if len(h.Short()) != 12 || string(h)[:12] != h.Short() {
		t.Errorf("Unexpected short hash %q for %s", h.Short(), h)
	}
	if Hash("abc").Short() != "abc" {
		t.Error("Expected short hashes to be returned unchanged")
	}
}
