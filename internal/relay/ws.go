package relay

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blockforge/internal/filekey"
	"blockforge/internal/stream"
	"blockforge/internal/upstream"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type      string `json:"type"`
	Prompt    string `json:"prompt,omitempty"`
	SubjectID string `json:"subjectId,omitempty"`
}

type wsOutbound struct {
	Type  string   `json:"type"`
	Key   string   `json:"key,omitempty"`
	Text  string   `json:"text,omitempty"`
	Files []string `json:"files,omitempty"`
	Code  string   `json:"code,omitempty"`
	Error string   `json:"error,omitempty"`
}

// LiveHandler runs the decode pipeline server-side and pushes typed segment
// events over a websocket, so thin clients get classified output instead of
// raw frames.
type LiveHandler struct {
	source upstream.Source
}

func NewLiveHandler(source upstream.Source) *LiveHandler {
	return &LiveHandler{source: source}
}

func (h *LiveHandler) HandleGenerationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("relay ws: set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// One generation at a time: starting a new one cancels the prior.
	var (
		genMu     sync.Mutex
		genCancel context.CancelFunc
		genSess   *stream.Session
	)
	stopCurrent := func() {
		genMu.Lock()
		defer genMu.Unlock()
		if genCancel != nil {
			genCancel()
			genCancel = nil
		}
		if genSess != nil {
			genSess.Cancel()
		}
	}
	defer stopCurrent()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			push(writeCh, wsOutbound{Type: "pong"})
		case "cancel":
			stopCurrent()
			push(writeCh, wsOutbound{Type: "cancelled"})
		case "start":
			if strings.TrimSpace(in.Prompt) == "" {
				push(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Error: "prompt is required"})
				continue
			}
			stopCurrent()
			genCtx, cancelGen := context.WithCancel(ctx)
			sess := stream.NewSession(liveHooks(writeCh))
			genMu.Lock()
			genCancel = cancelGen
			genSess = sess
			genMu.Unlock()
			go h.runGeneration(genCtx, sess, in.Prompt, writeCh)
		default:
			push(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Error: "unknown message type"})
		}
	}
}

func (h *LiveHandler) runGeneration(ctx context.Context, sess *stream.Session, prompt string, writeCh chan wsOutbound) {
	err := h.source.Stream(ctx, prompt, func(text string) error {
		if sess.Cancelled() {
			return stream.ErrCancelled
		}
		sess.FeedText(text)
		return ctx.Err()
	})
	// Cancellation still finalizes: the partial patch set is reviewable.
	patch := sess.Freeze()
	files := make([]string, 0, patch.Len())
	for _, k := range patch.Keys() {
		files = append(files, string(k))
	}
	out := wsOutbound{Type: "done", Files: files}
	if err != nil && ctx.Err() == nil {
		out.Type = "stopped"
		out.Error = err.Error()
	}
	push(writeCh, out)
}

func liveHooks(writeCh chan wsOutbound) stream.Hooks {
	return stream.Hooks{
		OnProse: func(text string) {
			push(writeCh, wsOutbound{Type: "prose", Text: text})
		},
		OnFileOpen: func(key filekey.Key) {
			push(writeCh, wsOutbound{Type: "file_open", Key: string(key)})
		},
		OnFileText: func(key filekey.Key, text string) {
			push(writeCh, wsOutbound{Type: "file_text", Key: string(key), Text: text})
		},
		OnFileClose: func(key filekey.Key) {
			push(writeCh, wsOutbound{Type: "file_close", Key: string(key)})
		},
		OnSummary: func(text string) {
			push(writeCh, wsOutbound{Type: "summary", Text: text})
		},
	}
}

// push drops events when the writer falls behind instead of blocking the
// decode loop.
func push(ch chan wsOutbound, out wsOutbound) {
	select {
	case ch <- out:
	default:
		log.Printf("relay ws: dropping %s event, writer backlogged", out.Type)
	}
}
