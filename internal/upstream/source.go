// Package upstream abstracts the model endpoint behind the relay: an opaque
// producer of incremental text. The streaming core never sees provider SDKs.
package upstream

import (
	"context"
	"strings"
)

// Source streams model output for one prompt. Implementations call onChunk
// for each incremental piece of text, in order, on the caller's goroutine.
// Returning an error from onChunk stops the stream.
type Source interface {
	Name() string
	Stream(ctx context.Context, prompt string, onChunk func(text string) error) error
}

// SourceFunc adapts a bare streaming function to the Source interface.
type SourceFunc func(ctx context.Context, prompt string, onChunk func(string) error) error

func (f SourceFunc) Name() string { return "func" }

func (f SourceFunc) Stream(ctx context.Context, prompt string, onChunk func(string) error) error {
	return f(ctx, prompt, onChunk)
}

// ScriptSource replays a fixed text split into fixed-size chunks. It backs
// tests and the offline mode, where no provider credentials exist.
type ScriptSource struct {
	Text      string
	ChunkSize int
}

func (s *ScriptSource) Name() string { return "script" }

func (s *ScriptSource) Stream(ctx context.Context, _ string, onChunk func(string) error) error {
	size := s.ChunkSize
	if size <= 0 {
		size = 24
	}
	text := s.Text
	for len(text) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := size
		if n > len(text) {
			n = len(text)
		}
		if err := onChunk(text[:n]); err != nil {
			return err
		}
		text = text[n:]
	}
	return nil
}

// SplitChunks is a test helper view of how a ScriptSource slices its text.
func SplitChunks(text string, size int) []string {
	if size <= 0 {
		size = 24
	}
	var out []string
	for len(text) > 0 {
		n := size
		if n > len(text) {
			n = len(text)
		}
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

var _ Source = (*ScriptSource)(nil)

// TrimPrompt normalizes a user prompt before it reaches a provider.
func TrimPrompt(prompt string) string {
	return strings.TrimSpace(prompt)
}
