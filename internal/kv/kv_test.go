package kv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	f, err := NewFile(filepath.Join(t.TempDir(), "kv"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return map[string]Backend{
		"memory": NewMemory(),
		"file":   f,
	}
}

func TestBackend_RoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := b.Get("prism_history"); ok || err != nil {
				t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
			}
			if err := b.Set("prism_history", "[]"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			v, ok, err := b.Get("prism_history")
			if err != nil || !ok || v != "[]" {
				t.Fatalf("Get = %q, %v, %v", v, ok, err)
			}
			if err := b.Delete("prism_history"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := b.Get("prism_history"); ok {
				t.Error("key present after Delete")
			}
			if err := b.Delete("prism_history"); err != nil {
				t.Errorf("Delete(missing): %v", err)
			}
		})
	}
}

func TestBackend_UpdateError(t *testing.T) {
	boom := errors.New("boom")
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Set("k", "old"); err != nil {
				t.Fatal(err)
			}
			err := b.Update("k", func(old string, ok bool) (string, error) {
				if !ok || old != "old" {
					t.Errorf("fn got %q, %v", old, ok)
				}
				return "new", boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("Update err = %v", err)
			}
			if v, _, _ := b.Get("k"); v != "old" {
				t.Errorf("value = %q, want old", v)
			}

			if err := b.Update("k", func(string, bool) (string, error) { return "", ErrNoChange }); err != nil {
				t.Errorf("ErrNoChange: %v", err)
			}
			if v, _, _ := b.Get("k"); v != "old" {
				t.Errorf("value = %q after ErrNoChange", v)
			}

			if err := b.Update("k", func(old string, _ bool) (string, error) { return old + "+1", nil }); err != nil {
				t.Fatal(err)
			}
			if v, _, _ := b.Get("k"); v != "old+1" {
				t.Errorf("value = %q, want old+1", v)
			}
		})
	}
}

func TestFile_KeyEscaping(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Set("../escape", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 file inside dir", len(entries))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.json")); err == nil {
		t.Error("key escaped the kv directory")
	}
}

func TestFile_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Set("prism-theme", "light"); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}
