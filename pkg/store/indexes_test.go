package store

import (
	"testing"

	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bobboyms/jsondb/pkg/wal"
)

func TestRegisterIndex_IsIdempotent(t *testing.T) {
	s := openTestStore(t, wal.DurabilityNone)
	if err := s.RegisterIndex("by_email", "email"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := s.RegisterIndex("by_email", "email"); err != nil {
		t.Fatalf("re-register should be a no-op, got: %v", err)
	}
}

func TestFindIndexPaths_UnregisteredNameErrors(t *testing.T) {
	s := openTestStore(t, wal.DurabilityNone)
	if _, err := s.FindIndexPaths("nope", value.NewString("x")); err == nil {
		t.Fatal("expected error for unregistered index name")
	}
}

func TestApplyIndexUpdates_InsertAndRemoveOnMatchingPath(t *testing.T) {
	s := openTestStore(t, wal.DurabilityNone)
	if err := s.RegisterIndex("by_email", "email"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	doc := value.NewEmptyObject()
	value.Set(doc, "email", value.NewString("ada@example.com"))
	if err := s.Set("users.1", doc); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	paths, err := s.FindIndexPaths("by_email", value.NewString("ada@example.com"))
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "users.1" {
		t.Fatalf("expected [users.1], got %v", paths)
	}

	if err := s.Delete("users.1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	paths, _ = s.FindIndexPaths("by_email", value.NewString("ada@example.com"))
	if len(paths) != 0 {
		t.Fatalf("expected index entry removed after delete, got %v", paths)
	}
}

func TestApplyIndexUpdates_IgnoresNonMatchingPaths(t *testing.T) {
	s := openTestStore(t, wal.DurabilityNone)
	if err := s.RegisterIndex("by_email", "email"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := s.Set("users.1.name", value.NewString("ada")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	paths, _ := s.FindIndexPaths("by_email", value.NewString("ada"))
	if len(paths) != 0 {
		t.Fatal("expected a path not ending in .email to leave the index untouched")
	}
}
