package version

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blockforge/internal/filekey"
)

// MemoryStore keeps version history in process. The single mutex serializes
// version-number assignment, so the monotonicity guarantee holds for free.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string][]Record // subjectID -> records, insertion order
	byID map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs: make(map[string][]Record),
		byID: make(map[string]Record),
	}
}

func (s *MemoryStore) SaveIfChanged(_ context.Context, subjectID string, key filekey.Key, content, authorID string) (bool, *Record, error) {
	if s == nil {
		return false, nil, fmt.Errorf("store is nil")
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, nil, fmt.Errorf("subject_id is required")
	}
	if key == "" {
		return false, nil, fmt.Errorf("file_key is required")
	}
	if content == "" {
		return false, nil, nil
	}
	hash := HashContent(content)

	s.mu.Lock()
	defer s.mu.Unlock()
	latest := s.latestLocked(subjectID, key)
	if latest != nil && latest.ContentHash == hash {
		return false, latest, nil
	}
	next := 1
	if latest != nil {
		next = latest.VersionNumber + 1
	}
	rec := Record{
		ID:            uuid.NewString(),
		SubjectID:     subjectID,
		FileKey:       key,
		Content:       content,
		ContentHash:   hash,
		VersionNumber: next,
		AuthorID:      authorID,
		CreatedAt:     time.Now().UTC(),
	}
	s.recs[subjectID] = append(s.recs[subjectID], rec)
	s.byID[rec.ID] = rec
	return true, &rec, nil
}

func (s *MemoryStore) ListVersions(_ context.Context, subjectID string, key filekey.Key, limit int) ([]Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.recs[strings.TrimSpace(subjectID)] {
		if r.FileKey == key {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListKeys(_ context.Context, subjectID string) ([]filekey.Key, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[filekey.Key]bool)
	var out []filekey.Key
	for _, r := range s.recs[strings.TrimSpace(subjectID)] {
		if !seen[r.FileKey] {
			seen[r.FileKey] = true
			out = append(out, r.FileKey)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetVersion(_ context.Context, versionID string) (*Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[strings.TrimSpace(versionID)]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) Prune(_ context.Context, subjectID string, keep int) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	subjectID = strings.TrimSpace(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := make(map[filekey.Key][]Record)
	for _, r := range s.recs[subjectID] {
		byKey[r.FileKey] = append(byKey[r.FileKey], r)
	}
	var kept []Record
	for _, recs := range byKey {
		sort.Slice(recs, func(i, j int) bool { return recs[i].VersionNumber > recs[j].VersionNumber })
		for i, r := range recs {
			if i < keep {
				kept = append(kept, r)
			} else {
				delete(s.byID, r.ID)
			}
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].CreatedAt.Before(kept[j].CreatedAt) })
	s.recs[subjectID] = kept
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, subjectID string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	subjectID = strings.TrimSpace(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs[subjectID] {
		delete(s.byID, r.ID)
	}
	delete(s.recs, subjectID)
	return nil
}

func (s *MemoryStore) latestLocked(subjectID string, key filekey.Key) *Record {
	var latest *Record
	for i := range s.recs[subjectID] {
		r := &s.recs[subjectID][i]
		if r.FileKey != key {
			continue
		}
		if latest == nil || r.VersionNumber > latest.VersionNumber {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}
