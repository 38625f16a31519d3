package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reward-service/internal/types"
)

func TestDefaultCatalog(t *testing.T) {
	c := NewDefault()

	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}

	amount, ok := c.Amount("sat")
	if !ok || amount != 2 {
		t.Errorf("Amount(sat) = %d, %v; want 2, true", amount, ok)
	}

	if c.Contains("noSuchReward") {
		t.Error("Contains(noSuchReward) = true, want false")
	}
	if _, ok := c.Amount("noSuchReward"); ok {
		t.Error("Amount(noSuchReward) should not be payable")
	}
}

func TestIDsAreSorted(t *testing.T) {
	c := New(map[types.RewardID]int64{"b": 1, "a": 2, "c": 3})

	ids := c.IDs()
	if len(ids) != 3 {
		t.Fatalf("IDs() length = %d, want 3", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("IDs() not sorted: %v", ids)
		}
	}
}

func TestCatalogIsolation(t *testing.T) {
	entries := map[types.RewardID]int64{"quizA": 500}
	c := New(entries)

	// Mutating the source map must not affect the catalog
	entries["quizA"] = 1

	amount, _ := c.Amount("quizA")
	if amount != 500 {
		t.Errorf("Amount(quizA) = %d after source mutation, want 500", amount)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file replaces defaults", func(t *testing.T) {
		path := filepath.Join(dir, "catalog.json")
		if err := os.WriteFile(path, []byte(`{"quizA": 500, "quizB": 100}`), 0o600); err != nil {
			t.Fatalf("failed to write catalog file: %v", err)
		}

		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if c.Len() != 2 {
			t.Errorf("Len() = %d, want 2", c.Len())
		}
		if amount, _ := c.Amount("quizA"); amount != 500 {
			t.Errorf("Amount(quizA) = %d, want 500", amount)
		}
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte(`{"quizA": 0}`), 0o600); err != nil {
			t.Fatalf("failed to write catalog file: %v", err)
		}

		if _, err := LoadFromFile(path); err == nil {
			t.Error("LoadFromFile() expected error for zero amount")
		}
	})

	t.Run("empty path falls back to default", func(t *testing.T) {
		c, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !c.Contains("walletDownloaded") {
			t.Error("default catalog missing walletDownloaded")
		}
	})
}
