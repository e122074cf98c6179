package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync/atomic"

	"blockforge/internal/filekey"
)

// ErrCancelled reports a cooperatively cancelled session. The patch set is
// still frozen and usable.
var ErrCancelled = errors.New("stream: generation cancelled")

// Session is the transient per-generation pipeline: transport lines in,
// classified segments and a frozen PatchSet out. One session serves exactly
// one streamed response and is discarded after finalization.
type Session struct {
	reasm *Reassembler
	cls   *Classifier
	acc   *Accumulator

	cancelled atomic.Bool
	finalized atomic.Bool
}

// NewSession builds a session with the given live-output hooks.
func NewSession(hooks Hooks) *Session {
	acc := NewAccumulator()
	return &Session{
		reasm: NewReassembler(),
		cls:   NewClassifier(acc, hooks),
		acc:   acc,
	}
}

// Classifier exposes the mode state machine, mainly for tests and UI state.
func (s *Session) Classifier() *Classifier { return s.cls }

// Envelope returns the provider header once seen.
func (s *Session) Envelope() *Envelope { return s.reasm.Envelope() }

// FeedLine pushes one transport line through the pipeline. It returns true
// when the terminal frame was consumed.
func (s *Session) FeedLine(line string) (done bool) {
	if s.finalized.Load() || s.cancelled.Load() {
		return true
	}
	texts, done := s.reasm.PushLine(line)
	for _, t := range texts {
		s.cls.Write(t)
	}
	return done
}

// FeedText bypasses the transport framing and feeds decoded provider text
// directly, for callers that already hold plain text.
func (s *Session) FeedText(text string) {
	if s.finalized.Load() || s.cancelled.Load() {
		return
	}
	s.cls.Write(text)
}

// Run consumes the transport until the terminal frame, EOF, or context
// cancellation. Whatever accumulated is always finalized; a partial result
// with an error is still a result the user can review.
func (s *Session) Run(ctx context.Context, r io.Reader) (*PatchSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			s.Cancel()
			return s.Freeze(), ErrCancelled
		default:
		}
		if s.cancelled.Load() {
			return s.Freeze(), ErrCancelled
		}
		if done := s.FeedLine(scanner.Text()); done {
			return s.Freeze(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		// Transport drop: generation stopped, partial output stands.
		return s.Freeze(), err
	}
	return s.Freeze(), nil
}

// Cancel requests cooperative cancellation. Already-rendered output remains;
// the next Freeze returns the partial patch set.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Freeze finalizes the session and returns the patch set. Idempotent.
func (s *Session) Freeze() *PatchSet {
	if s.finalized.CompareAndSwap(false, true) {
		s.reasm.Flush()
		s.cls.Finish()
	}
	return s.acc.Freeze()
}

// Plan returns the streamed implementation outline, if any.
func (s *Session) Plan() string { return s.acc.Plan() }

// Summary returns the streamed changelog, if any.
func (s *Session) Summary() string { return s.acc.Summary() }

// Segments returns the classified segments emitted so far.
func (s *Session) Segments() []Segment { return s.cls.Segments() }

// CurrentKey returns the open file key while mid-file.
func (s *Session) CurrentKey() (filekey.Key, bool) { return s.cls.CurrentKey() }
