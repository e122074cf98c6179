package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"blockforge/internal/contentstore"
	"blockforge/internal/filekey"
	"blockforge/internal/review"
	"blockforge/internal/stream"
	"blockforge/internal/version"
)

// ReviewHandler applies a reviewed patch set to the content store and
// snapshots the result into the version store.
type ReviewHandler struct {
	content  contentstore.Store
	versions *version.Service
}

func NewReviewHandler(content contentstore.Store, versions *version.Service) *ReviewHandler {
	return &ReviewHandler{content: content, versions: versions}
}

func (h *ReviewHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		SubjectID string            `json:"subjectId"`
		AuthorID  string            `json:"authorId"`
		Files     map[string]string `json:"files"`
		Accepted  []string          `json:"accepted"`
		Rejected  []string          `json:"rejected"`
		Mode      string            `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	subjectID := strings.TrimSpace(in.SubjectID)
	if subjectID == "" {
		http.Error(w, "subjectId is required", http.StatusBadRequest)
		return
	}
	if len(in.Files) == 0 {
		http.Error(w, "files must not be empty", http.StatusBadRequest)
		return
	}

	files := make(map[filekey.Key]string, len(in.Files))
	order := make([]filekey.Key, 0, len(in.Files))
	for raw, text := range in.Files {
		key := filekey.Normalize(raw)
		if _, seen := files[key]; seen {
			continue
		}
		files[key] = text
		order = append(order, key)
	}
	patch := stream.NewPatchSet(files, order)

	sess, err := review.Open(r.Context(), patch, h.content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, raw := range in.Accepted {
		if err := sess.SetStatus(filekey.Normalize(raw), review.StatusAccepted); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	for _, raw := range in.Rejected {
		if err := sess.SetStatus(filekey.Normalize(raw), review.StatusRejected); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}

	mode := review.CommitReviewed
	if strings.EqualFold(strings.TrimSpace(in.Mode), "all") {
		mode = review.CommitAll
	}
	result := sess.Commit(r.Context(), mode)

	errs := make(map[string]string, len(result.Errors))
	for key, ferr := range result.Errors {
		errs[string(key)] = ferr.Error()
	}
	created, verr := h.versions.SaveAllChanged(r.Context(), subjectID, strings.TrimSpace(in.AuthorID))
	if verr != nil {
		// The apply already happened; report the snapshot failure alongside.
		errs["_snapshot"] = verr.Error()
	}

	writeJSON(w, map[string]any{
		"applied":         keysToStrings(result.Applied),
		"skipped":         keysToStrings(result.Skipped),
		"failed":          keysToStrings(result.Failed),
		"errors":          errs,
		"versionsCreated": created,
	})
}

func keysToStrings(keys []filekey.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k))
	}
	return out
}
