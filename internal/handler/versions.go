package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"blockforge/internal/filekey"
	"blockforge/internal/version"
)

type VersionHandler struct {
	versions *version.Service
}

func NewVersionHandler(versions *version.Service) *VersionHandler {
	return &VersionHandler{versions: versions}
}

type versionItem struct {
	ID            string `json:"id"`
	FileKey       string `json:"fileKey"`
	VersionNumber int    `json:"versionNumber"`
	ContentHash   string `json:"contentHash"`
	AuthorID      string `json:"authorId,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func (h *VersionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
	if subjectID == "" {
		http.Error(w, "subject_id is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	out := map[string][]versionItem{}
	if rawKey := strings.TrimSpace(r.URL.Query().Get("file_key")); rawKey != "" {
		key := filekey.Normalize(rawKey)
		recs, err := h.versions.ListVersions(r.Context(), subjectID, key, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out[string(key)] = toItems(recs)
	} else {
		all, err := h.versions.ListAll(r.Context(), subjectID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for key, recs := range all {
			if limit > 0 && len(recs) > limit {
				recs = recs[:limit]
			}
			out[string(key)] = toItems(recs)
		}
	}
	writeJSON(w, map[string]any{
		"subjectId": subjectID,
		"files":     out,
	})
}

func (h *VersionHandler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	idA := strings.TrimSpace(r.URL.Query().Get("from"))
	idB := strings.TrimSpace(r.URL.Query().Get("to"))
	if idA == "" || idB == "" {
		http.Error(w, "from and to version ids are required", http.StatusBadRequest)
		return
	}
	res, err := h.versions.Diff(r.Context(), idA, idB)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, version.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, version.ErrKeyMismatch):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, map[string]any{
		"fileKey":  string(res.FileKey),
		"original": res.Original,
		"modified": res.Modified,
		"unified":  res.Unified,
	})
}

func (h *VersionHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		SubjectID string `json:"subjectId"`
		VersionID string `json:"versionId"`
		AuthorID  string `json:"authorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	subjectID := strings.TrimSpace(in.SubjectID)
	versionID := strings.TrimSpace(in.VersionID)
	if subjectID == "" || versionID == "" {
		http.Error(w, "subjectId and versionId are required", http.StatusBadRequest)
		return
	}
	key, newID, err := h.versions.Restore(r.Context(), subjectID, versionID, strings.TrimSpace(in.AuthorID))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, version.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, version.ErrSubjectMismatch):
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, map[string]any{
		"fileKey":      string(key),
		"newVersionId": newID,
	})
}

func toItems(recs []version.Record) []versionItem {
	items := make([]versionItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, versionItem{
			ID:            rec.ID,
			FileKey:       string(rec.FileKey),
			VersionNumber: rec.VersionNumber,
			ContentHash:   rec.ContentHash,
			AuthorID:      rec.AuthorID,
			CreatedAt:     rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return items
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
