package upstream

import (
	"context"

	genai "google.golang.org/genai"
)

// GeminiSource is a thin wrapper around the official genai client. It only
// does the API call; framing, relaying, and decoding live elsewhere.
type GeminiSource struct {
	cli   *genai.Client
	model string
}

// NewGeminiSource builds a source for one model. An empty apiKey falls back
// to the genai client's own environment lookup.
func NewGeminiSource(ctx context.Context, model, apiKey string) (*GeminiSource, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiSource{cli: cli, model: model}, nil
}

func (g *GeminiSource) Name() string { return "gemini:" + g.model }

// Stream runs one streamed generation, forwarding each partial response's
// text to onChunk.
func (g *GeminiSource) Stream(ctx context.Context, prompt string, onChunk func(string) error) error {
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: TrimPrompt(prompt)}}}}
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, contents, nil) {
		if err != nil {
			return err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			if err := onChunk(part.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

var _ Source = (*GeminiSource)(nil)
