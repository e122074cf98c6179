package chatlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndLoad(t *testing.T) {
	s := NewStore(t.TempDir())

	u, err := s.Append("p1", RoleUser, "make a hero block", nil)
	if err != nil {
		t.Fatalf("append user: %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("turn not stamped: %+v", u)
	}
	if _, err := s.Append("p1", RoleModel, "done", []string{"block_json", "style_css"}); err != nil {
		t.Fatalf("append model: %v", err)
	}

	turns, err := s.Load("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleModel {
		t.Fatalf("order wrong: %+v", turns)
	}
	if len(turns[1].FileKeys) != 2 {
		t.Fatalf("file keys lost: %+v", turns[1])
	}
}

func TestSubjectsAreIsolated(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Append("p1", RoleUser, "a", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	turns, err := s.Load("p2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("leaked turns across subjects: %+v", turns)
	}
}

func TestLoadSurvivesRestore(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.Append("p1", RoleUser, "persisted", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A new store over the same directory sees the history.
	s2 := NewStore(dir)
	turns, err := s2.Load("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "persisted" {
		t.Fatalf("history lost: %+v", turns)
	}
}

func TestCorruptLogStartsFresh(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	s := NewStore(dir)
	turns, err := s.Load("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("corrupt log yielded turns: %+v", turns)
	}
	if _, err := s.Append("p1", RoleUser, "fresh", nil); err != nil {
		t.Fatalf("append after corrupt: %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Append("p1", RoleUser, "x", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Delete("p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	turns, err := s.Load("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("delete left turns: %+v", turns)
	}
	// Deleting a missing log is fine.
	if err := s.Delete("p1"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}
