package credentials

import (
	"testing"
	"time"
)

func TestIsStale(t *testing.T) {
	updated := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	before := updated.Add(-time.Hour)
	after := updated.Add(time.Hour)

	if IsStale(updated, nil) {
		t.Fatalf("expected nothing revealed to be fresh")
	}
	if !IsStale(updated, &before) {
		t.Fatalf("expected reveal before the update to be stale")
	}
	if IsStale(updated, &after) {
		t.Fatalf("expected reveal after the update to be fresh")
	}
	if IsStale(updated, &updated) {
		t.Fatalf("expected reveal at the update instant to be fresh")
	}
}
