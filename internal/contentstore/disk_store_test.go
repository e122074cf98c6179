package contentstore

import (
	"context"
	"testing"

	"blockforge/internal/filekey"
)

func TestDiskStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	s := NewDiskStore(t.TempDir())

	if err := s.WriteField(ctx, filekey.BlockJSON, `{"name":"x"}`); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.ReadField(ctx, filekey.BlockJSON)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != `{"name":"x"}` {
		t.Fatalf("content = %q", got)
	}

	// Unwritten core fields read as empty, not as an error.
	got, err = s.ReadField(ctx, filekey.StyleCSS)
	if err != nil || got != "" {
		t.Fatalf("empty read: %q %v", got, err)
	}
}

func TestDiskStoreCustomManifestPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := NewDiskStore(dir)
	key, err := s.RegisterNewFile(ctx, "admin.css")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if key != "admin_css" {
		t.Fatalf("key = %q", key)
	}
	if err := s.WriteField(ctx, key, ".a{}"); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A fresh store over the same directory sees the custom file.
	s2 := NewDiskStore(dir)
	keys, err := s2.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	found := false
	for _, k := range keys {
		if k == key {
			found = true
		}
	}
	if !found {
		t.Fatalf("custom key missing from %v", keys)
	}
	got, err := s2.ReadField(ctx, key)
	if err != nil || got != ".a{}" {
		t.Fatalf("custom read: %q %v", got, err)
	}
}

func TestDiskStoreKeysCoreFirst(t *testing.T) {
	ctx := context.Background()
	s := NewDiskStore(t.TempDir())
	if _, err := s.RegisterNewFile(ctx, "extra.js"); err != nil {
		t.Fatalf("register: %v", err)
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	core := filekey.CoreKeys()
	if len(keys) != len(core)+1 {
		t.Fatalf("keys = %v", keys)
	}
	for i, k := range core {
		if keys[i] != k {
			t.Fatalf("core order broken at %d: %v", i, keys)
		}
	}
	if keys[len(keys)-1] != "extra_js" {
		t.Fatalf("custom not last: %v", keys)
	}
}

func TestMemoryStoreRegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	k1, err := s.RegisterNewFile(ctx, "helper.php")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	k2, err := s.RegisterNewFile(ctx, "helper.php")
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("keys differ: %q %q", k1, k2)
	}
	keys, _ := s.Keys(ctx)
	count := 0
	for _, k := range keys {
		if k == k1 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate registration in %v", keys)
	}
}
