package handler

import (
	"net/http"
	"strings"

	"blockforge/internal/chatlog"
)

// ChatHandler hydrates a subject's conversation history for UI reopen.
type ChatHandler struct {
	chat *chatlog.Store
}

func NewChatHandler(chat *chatlog.Store) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
		if subjectID == "" {
			http.Error(w, "subject_id is required", http.StatusBadRequest)
			return
		}
		turns, err := h.chat.Load(subjectID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"subjectId": subjectID,
			"turns":     turns,
		})
	case http.MethodDelete:
		subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
		if subjectID == "" {
			http.Error(w, "subject_id is required", http.StatusBadRequest)
			return
		}
		if err := h.chat.Delete(subjectID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
