package review

import (
	"github.com/pmezard/go-difflib/difflib"

	"blockforge/internal/filekey"
)

// Hunk is one contiguous changed region between baseline and proposed
// content, in line coordinates of each side.
type Hunk struct {
	Tag      string `json:"tag"` // replace | delete | insert
	OldStart int    `json:"oldStart"`
	OldEnd   int    `json:"oldEnd"`
	NewStart int    `json:"newStart"`
	NewEnd   int    `json:"newEnd"`
}

// Hunks computes the changed regions for one reviewable file.
func (s *Session) Hunks(key filekey.Key) []Hunk {
	base, ok := s.baseline[key]
	if !ok {
		return nil
	}
	proposed, _ := s.patch.Get(key)
	matcher := difflib.NewMatcher(difflib.SplitLines(base), difflib.SplitLines(proposed))
	var hunks []Hunk
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		tag := "replace"
		switch op.Tag {
		case 'd':
			tag = "delete"
		case 'i':
			tag = "insert"
		}
		hunks = append(hunks, Hunk{
			Tag:      tag,
			OldStart: op.I1,
			OldEnd:   op.I2,
			NewStart: op.J1,
			NewEnd:   op.J2,
		})
	}
	return hunks
}

// CurrentHunk returns the hunk under the hunk cursor for the current file.
func (s *Session) CurrentHunk() (Hunk, bool) {
	key, ok := s.CurrentFile()
	if !ok {
		return Hunk{}, false
	}
	hunks := s.Hunks(key)
	if len(hunks) == 0 {
		return Hunk{}, false
	}
	if s.hunkIdx < 0 || s.hunkIdx >= len(hunks) {
		s.hunkIdx = 0
	}
	return hunks[s.hunkIdx], true
}

// NavigateHunk moves the hunk cursor by delta within the current file,
// wrapping at both ends.
func (s *Session) NavigateHunk(delta int) (Hunk, bool) {
	key, ok := s.CurrentFile()
	if !ok {
		return Hunk{}, false
	}
	hunks := s.Hunks(key)
	n := len(hunks)
	if n == 0 {
		return Hunk{}, false
	}
	s.hunkIdx = ((s.hunkIdx+delta)%n + n) % n
	return hunks[s.hunkIdx], true
}
