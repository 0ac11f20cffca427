package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/guard"
)

func openTempStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close ledger: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty ledger path")
	}
}

func TestAdmitIsIdempotent(t *testing.T) {
	store := openTempStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	admitted, err := store.Admit(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !admitted {
		t.Fatal("first admit = false, want true")
	}

	admitted, err = store.Admit(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("repeat admit: %v", err)
	}
	if admitted {
		t.Fatal("repeat admit = true, want false")
	}
}

func TestAdmitRejectsEmptyOrderID(t *testing.T) {
	store := openTempStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	if _, err := store.Admit(context.Background(), ""); !errors.Is(err, guard.ErrEmptyOrderID) {
		t.Fatalf("err = %v, want ErrEmptyOrderID", err)
	}
}

func TestAdmissionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	admitted, err := store.Admit(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !admitted {
		t.Fatal("first admit = false, want true")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close ledger: %v", err)
	}

	reopened := openTempStore(t, path)
	admitted, err = reopened.Admit(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("admit after reopen: %v", err)
	}
	if admitted {
		t.Fatal("admit after reopen = true, want false (ledger is durable)")
	}

	admitted, err = reopened.Admit(context.Background(), "order-2")
	if err != nil {
		t.Fatalf("admit new order: %v", err)
	}
	if !admitted {
		t.Fatal("new order admit = false, want true")
	}
}
