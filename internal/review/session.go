// Package review implements the per-stream workflow of inspecting,
// accepting, or rejecting each changed file before committing it to the
// content store.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blockforge/internal/contentstore"
	"blockforge/internal/filekey"
	"blockforge/internal/stream"
)

// Status is the per-file review state. Transitions go pending->accepted or
// pending->rejected and are sticky within one session; only re-opening the
// review resets them.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

var (
	ErrNotChanged    = errors.New("file is not part of the changed set")
	ErrStatusSticky  = errors.New("file was already reviewed")
	ErrSessionClosed = errors.New("review session was discarded")
)

// CommitMode selects which files Commit writes.
type CommitMode int

const (
	// CommitAll writes every changed file regardless of review status.
	CommitAll CommitMode = iota
	// CommitReviewed writes accepted and still-pending files, skips rejected.
	CommitReviewed
)

// CommitResult reports the per-file outcome of a commit. Commit is
// all-or-nothing per file, never across files.
type CommitResult struct {
	Applied []filekey.Key         `json:"applied"`
	Skipped []filekey.Key         `json:"skipped"`
	Failed  []filekey.Key         `json:"failed"`
	Errors  map[filekey.Key]error `json:"-"`
}

// Session reviews one frozen PatchSet against current content.
type Session struct {
	patch   *stream.PatchSet
	content contentstore.Store

	changed  []filekey.Key
	status   map[filekey.Key]Status
	baseline map[filekey.Key]string // current content at open time
	unseen   map[filekey.Key]bool   // custom keys needing registration

	cursor    int
	hunkIdx   int
	registry  *EditorRegistry
	discarded bool
}

// Open computes the changed-file subset and starts a session. Files whose
// normalized new content equals normalized current content are excluded
// from review entirely.
func Open(ctx context.Context, patch *stream.PatchSet, content contentstore.Store) (*Session, error) {
	if patch == nil {
		return nil, fmt.Errorf("review: nil patch set")
	}
	if content == nil {
		return nil, fmt.Errorf("review: nil content store")
	}
	tracked := make(map[filekey.Key]bool)
	if keys, err := content.Keys(ctx); err == nil {
		for _, k := range keys {
			tracked[k] = true
		}
	}
	s := &Session{
		patch:    patch,
		content:  content,
		status:   make(map[filekey.Key]Status),
		baseline: make(map[filekey.Key]string),
		unseen:   make(map[filekey.Key]bool),
		registry: NewEditorRegistry(),
	}
	for _, key := range orderedKeys(patch) {
		newText, _ := patch.Get(key)
		curText, err := content.ReadField(ctx, key)
		if err != nil && !errors.Is(err, contentstore.ErrNotFound) {
			return nil, fmt.Errorf("review: read %s: %w", key, err)
		}
		if normalize(newText) == normalize(curText) {
			continue
		}
		s.changed = append(s.changed, key)
		s.status[key] = StatusPending
		s.baseline[key] = curText
		if !key.IsCore() && !tracked[key] {
			s.unseen[key] = true
		}
	}
	return s, nil
}

// orderedKeys yields the patch keys with core files first in declaration
// order, then custom files in first-seen stream order.
func orderedKeys(patch *stream.PatchSet) []filekey.Key {
	var out []filekey.Key
	for _, key := range filekey.CoreKeys() {
		if _, ok := patch.Get(key); ok {
			out = append(out, key)
		}
	}
	for _, key := range patch.Keys() {
		if !key.IsCore() {
			out = append(out, key)
		}
	}
	return out
}

// normalize strips line-ending and edge-whitespace noise before comparing.
func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// ListChangedFiles returns the reviewable keys in navigation order.
func (s *Session) ListChangedFiles() []filekey.Key {
	out := make([]filekey.Key, len(s.changed))
	copy(out, s.changed)
	return out
}

// Status returns the review state for key.
func (s *Session) Status(key filekey.Key) (Status, bool) {
	st, ok := s.status[key]
	return st, ok
}

// Registry exposes the session's editor registry.
func (s *Session) Registry() *EditorRegistry { return s.registry }

// Baseline returns the pre-patch content captured at open time.
func (s *Session) Baseline(key filekey.Key) (string, bool) {
	v, ok := s.baseline[key]
	return v, ok
}

// Proposed returns the patch content for key.
func (s *Session) Proposed(key filekey.Key) (string, bool) {
	return s.patch.Get(key)
}

// CurrentFile returns the key under the review cursor.
func (s *Session) CurrentFile() (filekey.Key, bool) {
	if len(s.changed) == 0 || s.cursor < 0 || s.cursor >= len(s.changed) {
		return "", false
	}
	return s.changed[s.cursor], true
}

// SetStatus records an accept or reject decision. Decisions are sticky; the
// cursor auto-advances to the next pending file when one exists.
func (s *Session) SetStatus(key filekey.Key, st Status) error {
	if s.discarded {
		return ErrSessionClosed
	}
	if st != StatusAccepted && st != StatusRejected {
		return fmt.Errorf("review: invalid status %q", st)
	}
	cur, ok := s.status[key]
	if !ok {
		return ErrNotChanged
	}
	if cur != StatusPending {
		return ErrStatusSticky
	}
	s.status[key] = st
	s.advanceToPending()
	return nil
}

// advanceToPending moves the cursor to the next changed file still pending,
// scanning forward with wraparound. Cursor stays put if nothing is pending.
func (s *Session) advanceToPending() {
	n := len(s.changed)
	for i := 1; i <= n; i++ {
		idx := (s.cursor + i) % n
		if s.status[s.changed[idx]] == StatusPending {
			s.cursor = idx
			s.hunkIdx = 0
			return
		}
	}
}

// NavigateFile moves the review cursor by delta across changed files,
// wrapping at both ends.
func (s *Session) NavigateFile(delta int) (filekey.Key, bool) {
	n := len(s.changed)
	if n == 0 {
		return "", false
	}
	s.cursor = ((s.cursor+delta)%n + n) % n
	s.hunkIdx = 0
	return s.changed[s.cursor], true
}

// Commit writes the selected files to the content store. Previously-unseen
// custom keys are registered (their editable slot created) before the first
// write. A failure on one file never prevents attempting the rest.
func (s *Session) Commit(ctx context.Context, mode CommitMode) CommitResult {
	res := CommitResult{Errors: make(map[filekey.Key]error)}
	if s.discarded {
		return res
	}
	for _, key := range s.changed {
		if mode == CommitReviewed && s.status[key] == StatusRejected {
			res.Skipped = append(res.Skipped, key)
			continue
		}
		text, _ := s.patch.Get(key)
		if err := s.writeOne(ctx, key, text); err != nil {
			res.Failed = append(res.Failed, key)
			res.Errors[key] = err
			continue
		}
		res.Applied = append(res.Applied, key)
	}
	return res
}

func (s *Session) writeOne(ctx context.Context, key filekey.Key, text string) error {
	if s.unseen[key] {
		if _, err := s.content.RegisterNewFile(ctx, key.Filename()); err != nil {
			return fmt.Errorf("register %s: %w", key, err)
		}
		delete(s.unseen, key)
	}
	if err := s.content.WriteField(ctx, key, text); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Discard clears all pending state without writing anything.
func (s *Session) Discard() {
	s.discarded = true
	s.status = make(map[filekey.Key]Status)
	s.changed = nil
	s.registry.Reset()
}

// Discarded reports whether the session was discarded.
func (s *Session) Discarded() bool { return s.discarded }
