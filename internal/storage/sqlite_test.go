package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/kalambet/prism/internal/kv"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies that the kv index is created by the migrations.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_kv_updated'").Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("index idx_kv_updated not found in sqlite_master")
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	v, ok, err := s.Get("prism_history")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != "" {
		t.Errorf("Get(missing) = %q, %v; want \"\", false", v, ok)
	}
}

func TestSetGetDelete(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("prism-theme", "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("prism-theme", "dark"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := s.Get("prism-theme")
	if err != nil || !ok || v != "dark" {
		t.Fatalf("Get = %q, %v, %v; want dark", v, ok, err)
	}

	if err := s.Delete("prism-theme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("prism-theme"); ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete("prism-theme"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestUpdate_FailureKeepsPreviousValue(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("k", "v1"); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := s.Update("k", func(old string, ok bool) (string, error) {
		return "v2", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v, want boom", err)
	}
	v, _, _ := s.Get("k")
	if v != "v1" {
		t.Errorf("value = %q after failed update, want v1", v)
	}

	// The connection must be usable again after the rollback.
	if err := s.Set("k", "v3"); err != nil {
		t.Fatalf("Set after rollback: %v", err)
	}
}

func TestUpdate_NoChange(t *testing.T) {
	s := openTestStore(t)

	err := s.Update("k", func(old string, ok bool) (string, error) {
		if ok {
			t.Error("ok = true for missing key")
		}
		return "", kv.ErrNoChange
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("ErrNoChange wrote a value")
	}
}

// TestUpdate_Serialized runs concurrent increments; none may be lost.
func TestUpdate_Serialized(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update("counter", func(old string, ok bool) (string, error) {
				return old + "x", nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	v, _, _ := s.Get("counter")
	if len(v) != n {
		t.Errorf("len(counter) = %d, want %d", len(v), n)
	}
}
