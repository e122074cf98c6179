package review

import (
	"context"
	"fmt"

	"blockforge/internal/filekey"
)

// Command is a typed review action. UI events are translated into commands
// and funneled through Reduce, keeping every state transition testable
// without a DOM or editor attached.
type Command interface{ isCommand() }

// AcceptFile marks one changed file accepted.
type AcceptFile struct{ Key filekey.Key }

// RejectFile marks one changed file rejected.
type RejectFile struct{ Key filekey.Key }

// NavigateFile moves the file cursor: +1 next, -1 previous.
type NavigateFile struct{ Delta int }

// NavigateHunk moves the diff-hunk cursor within the current file.
type NavigateHunk struct{ Delta int }

// ApplyAll commits every changed file regardless of status.
type ApplyAll struct{}

// ApplyReviewed commits accepted and pending files, skipping rejected.
type ApplyReviewed struct{}

// DiscardReview drops all pending state without writing.
type DiscardReview struct{}

func (AcceptFile) isCommand()    {}
func (RejectFile) isCommand()    {}
func (NavigateFile) isCommand()  {}
func (NavigateHunk) isCommand()  {}
func (ApplyAll) isCommand()      {}
func (ApplyReviewed) isCommand() {}
func (DiscardReview) isCommand() {}

// Reduce executes one command against the session and returns the commit
// result when the command was a commit, nil otherwise.
func (s *Session) Reduce(ctx context.Context, cmd Command) (*CommitResult, error) {
	switch c := cmd.(type) {
	case AcceptFile:
		return nil, s.SetStatus(c.Key, StatusAccepted)
	case RejectFile:
		return nil, s.SetStatus(c.Key, StatusRejected)
	case NavigateFile:
		s.NavigateFile(c.Delta)
		return nil, nil
	case NavigateHunk:
		s.NavigateHunk(c.Delta)
		return nil, nil
	case ApplyAll:
		res := s.Commit(ctx, CommitAll)
		return &res, nil
	case ApplyReviewed:
		res := s.Commit(ctx, CommitReviewed)
		return &res, nil
	case DiscardReview:
		s.Discard()
		return nil, nil
	default:
		return nil, fmt.Errorf("review: unknown command %T", cmd)
	}
}
