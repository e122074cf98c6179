// Package relay is the server-side stream proxy: it decouples the browser
// from the upstream model endpoint, forwarding bytes with no intermediate
// buffering and terminating the client connection after a final sentinel.
package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"blockforge/internal/chatlog"
	"blockforge/internal/stream"
	"blockforge/internal/upstream"
)

// Handler serves the generation relay endpoint.
type Handler struct {
	source   upstream.Source
	provider string
	chat     *chatlog.Store
}

func NewHandler(source upstream.Source, provider string) *Handler {
	if provider == "" {
		provider = "gemini"
	}
	return &Handler{source: source, provider: provider}
}

// WithChatLog records the prompt and the decoded model reply per subject.
// Recording is best effort; log failures never interrupt the stream.
func (h *Handler) WithChatLog(chat *chatlog.Store) *Handler {
	h.chat = chat
	return h
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	SubjectID string `json:"subjectId"`
}

// ServeHTTP relays one generation stream. Each upstream write becomes one
// framed line flushed immediately; the stream ends with the terminal frame
// and an explicit close. Cancellation arrives as request-context
// cancellation and stops the upstream read promptly.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Tell fronting proxies not to buffer; flush-per-write is the contract.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fw := &frameWriter{w: w, flusher: flusher}
	fw.writeObject(map[string]string{
		"provider": h.provider,
		"model":    h.source.Name(),
		"mode":     "stream",
	})

	subjectID := strings.TrimSpace(req.SubjectID)
	recording := h.chat != nil && subjectID != ""
	var tee *stream.Session
	if recording {
		if _, err := h.chat.Append(subjectID, chatlog.RoleUser, req.Prompt, nil); err != nil {
			log.Printf("relay: chat log append failed: %v", err)
		}
		// The tee mirrors the stream for the log; forwarding never waits on it.
		tee = stream.NewSession(stream.Hooks{})
	}

	err := h.source.Stream(r.Context(), req.Prompt, func(text string) error {
		if tee != nil {
			tee.FeedText(text)
		}
		return fw.writeChunk(text)
	})
	if err != nil && r.Context().Err() == nil {
		log.Printf("relay: upstream stream ended with error: %v", err)
	}
	fw.close()
	fw.terminal()

	if recording {
		patch := tee.Freeze()
		keys := make([]string, 0, patch.Len())
		for _, k := range patch.Keys() {
			keys = append(keys, string(k))
		}
		text := tee.Summary()
		if text == "" {
			text = proseText(tee.Segments())
		}
		if _, err := h.chat.Append(subjectID, chatlog.RoleModel, text, keys); err != nil {
			log.Printf("relay: chat log append failed: %v", err)
		}
	}
}

// proseText joins the prose segments of a finished session, for logging
// replies that carried no summary block.
func proseText(segs []stream.Segment) string {
	var b strings.Builder
	for _, seg := range segs {
		if seg.Kind == stream.SegmentProse {
			b.WriteString(seg.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// frameWriter encodes provider objects into the wire framing: a streamed
// JSON array split across base64 data lines, then a terminal line. It holds
// no state across chunks beyond the array position.
type frameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	opened  bool
	closed  bool
}

func (fw *frameWriter) writeChunk(text string) error {
	obj := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]string{"text": text}},
				},
			},
		},
	}
	return fw.writeObject(obj)
}

func (fw *frameWriter) writeObject(obj any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	sep := "["
	if fw.opened {
		sep = ","
	}
	fw.opened = true
	return fw.writeFrame(sep + string(raw))
}

func (fw *frameWriter) close() {
	if fw.closed {
		return
	}
	fw.closed = true
	if fw.opened {
		_ = fw.writeFrame("]")
	}
}

func (fw *frameWriter) terminal() {
	_, _ = fmt.Fprintf(fw.w, "data: %s\n", stream.Terminal)
	fw.flusher.Flush()
}

func (fw *frameWriter) writeFrame(payload string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	if _, err := fmt.Fprintf(fw.w, "data: %s\n", encoded); err != nil {
		return err
	}
	fw.flusher.Flush()
	return nil
}
