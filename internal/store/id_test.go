package store

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	t.Run("valid prefix", func(t *testing.T) {
		id, err := GenerateID("rp", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(id) != 9 { // "rp-" + 6 chars
			t.Fatalf("expected length 9, got %d: %s", len(id), id)
		}
		if id[:3] != "rp-" {
			t.Fatalf("expected prefix rp-, got %s", id[:3])
		}
	})

	t.Run("empty prefix", func(t *testing.T) {
		if _, err := GenerateID("", nil); err == nil {
			t.Fatal("expected error for empty prefix")
		}
	})

	t.Run("retries on collision", func(t *testing.T) {
		calls := 0
		exists := func(id string) (bool, error) {
			calls++
			return calls < 3, nil // first 2 calls collide
		}
		id, err := GenerateID("rp", exists)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id == "" {
			t.Fatal("expected non-empty id")
		}
		if calls != 3 {
			t.Fatalf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		exists := func(id string) (bool, error) {
			return true, nil
		}
		if _, err := GenerateID("rp", exists); err == nil {
			t.Fatal("expected error after max attempts")
		}
	})
}

func TestGenerateDatafileAndReplicaID(t *testing.T) {
	datafileID, err := GenerateDatafileID(nil)
	if err != nil {
		t.Fatalf("generate datafile id: %v", err)
	}
	if !strings.HasPrefix(datafileID, "df-") {
		t.Fatalf("expected datafile id with df- prefix, got %q", datafileID)
	}

	replicaID, err := GenerateReplicaID(nil)
	if err != nil {
		t.Fatalf("generate replica id: %v", err)
	}
	if !strings.HasPrefix(replicaID, "rp-") {
		t.Fatalf("expected replica id with rp- prefix, got %q", replicaID)
	}
}
