package version

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"blockforge/internal/contentstore"
	"blockforge/internal/filekey"
)

// Service is the version workflow over a Store and the live content store:
// commit-time saves, retention, diff rendering, restore.
type Service struct {
	store   Store
	content contentstore.Store
	archive *S3Archive // optional cold mirror
	keep    int
}

func NewService(store Store, content contentstore.Store) *Service {
	return &Service{store: store, content: content, keep: DefaultKeep}
}

// WithArchive attaches the S3 mirror. Archive failures are logged, never
// surfaced; the relational store is authoritative.
func (s *Service) WithArchive(a *S3Archive) *Service {
	s.archive = a
	return s
}

// WithKeep overrides the retention bound.
func (s *Service) WithKeep(keep int) *Service {
	if keep > 0 {
		s.keep = keep
	}
	return s
}

// SaveIfChanged records content for (subjectID, key) unless it matches the
// latest stored hash. Reports whether a new version was created.
func (s *Service) SaveIfChanged(ctx context.Context, subjectID string, key filekey.Key, content, authorID string) (bool, error) {
	created, rec, err := s.store.SaveIfChanged(ctx, subjectID, key, content, authorID)
	if err != nil {
		return false, err
	}
	if created && s.archive != nil {
		if aerr := s.archive.Archive(ctx, rec); aerr != nil {
			log.Printf("version: archive mirror failed for %s/%s v%d: %v", subjectID, key, rec.VersionNumber, aerr)
		}
	}
	return created, nil
}

// SaveAllChanged snapshots every tracked file's current content, then
// prunes. Per-file failures do not stop the sweep; the first error is
// returned after all files were attempted.
func (s *Service) SaveAllChanged(ctx context.Context, subjectID, authorID string) (createdCount int, err error) {
	keys, kerr := s.content.Keys(ctx)
	if kerr != nil {
		return 0, kerr
	}
	var firstErr error
	for _, key := range keys {
		text, rerr := s.content.ReadField(ctx, key)
		if rerr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("read %s: %w", key, rerr)
			}
			continue
		}
		created, serr := s.SaveIfChanged(ctx, subjectID, key, text, authorID)
		if serr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("save %s: %w", key, serr)
			}
			continue
		}
		if created {
			createdCount++
		}
	}
	if perr := s.store.Prune(ctx, subjectID, s.keep); perr != nil && firstErr == nil {
		firstErr = perr
	}
	return createdCount, firstErr
}

// Prune applies retention for the subject.
func (s *Service) Prune(ctx context.Context, subjectID string, keep int) error {
	if keep <= 0 {
		keep = s.keep
	}
	return s.store.Prune(ctx, subjectID, keep)
}

// ListVersions returns the subject's records for one file, newest-first.
func (s *Service) ListVersions(ctx context.Context, subjectID string, key filekey.Key, limit int) ([]Record, error) {
	return s.store.ListVersions(ctx, subjectID, key, limit)
}

// ListAll groups every record of the subject by file key.
func (s *Service) ListAll(ctx context.Context, subjectID string) (map[filekey.Key][]Record, error) {
	keys, err := s.store.ListKeys(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make(map[filekey.Key][]Record, len(keys))
	for _, key := range keys {
		recs, err := s.store.ListVersions(ctx, subjectID, key, 0)
		if err != nil {
			return nil, err
		}
		out[key] = recs
	}
	return out, nil
}

// DiffResult holds both sides of a version comparison plus a rendered
// unified diff for display.
type DiffResult struct {
	FileKey  filekey.Key `json:"fileKey"`
	Original string      `json:"original"`
	Modified string      `json:"modified"`
	Unified  string      `json:"unified"`
}

// Diff compares two records of the same file. Comparing across files is a
// user-facing failure with no partial effect.
func (s *Service) Diff(ctx context.Context, versionIDA, versionIDB string) (*DiffResult, error) {
	a, err := s.store.GetVersion(ctx, strings.TrimSpace(versionIDA))
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetVersion(ctx, strings.TrimSpace(versionIDB))
	if err != nil {
		return nil, err
	}
	if a.FileKey != b.FileKey {
		return nil, ErrKeyMismatch
	}
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a.Content),
		B:        difflib.SplitLines(b.Content),
		FromFile: fmt.Sprintf("%s@v%d", a.FileKey.Filename(), a.VersionNumber),
		ToFile:   fmt.Sprintf("%s@v%d", b.FileKey.Filename(), b.VersionNumber),
		Context:  3,
	})
	if err != nil {
		return nil, err
	}
	return &DiffResult{
		FileKey:  a.FileKey,
		Original: a.Content,
		Modified: b.Content,
		Unified:  unified,
	}, nil
}

// Restore writes a historic version's content back into the live content
// store, then records the restoration as a new version. History is never
// rewritten; a restore is just another forward step. Returns the file key
// and the id of the version now at the head (the fresh record, or the
// existing head when the content already matched).
func (s *Service) Restore(ctx context.Context, subjectID, versionID, authorID string) (filekey.Key, string, error) {
	rec, err := s.store.GetVersion(ctx, strings.TrimSpace(versionID))
	if err != nil {
		return "", "", err
	}
	if rec.SubjectID != strings.TrimSpace(subjectID) {
		return "", "", ErrSubjectMismatch
	}
	if err := s.content.WriteField(ctx, rec.FileKey, rec.Content); err != nil {
		return "", "", err
	}
	created, head, err := s.store.SaveIfChanged(ctx, subjectID, rec.FileKey, rec.Content, authorID)
	if err != nil {
		return "", "", err
	}
	if created && s.archive != nil {
		if aerr := s.archive.Archive(ctx, head); aerr != nil {
			log.Printf("version: archive mirror failed for %s/%s v%d: %v", subjectID, head.FileKey, head.VersionNumber, aerr)
		}
	}
	headID := ""
	if head != nil {
		headID = head.ID
	}
	return rec.FileKey, headID, nil
}

// DeleteAll removes the subject's entire history, used when the owning
// subject is destroyed.
func (s *Service) DeleteAll(ctx context.Context, subjectID string) error {
	return s.store.DeleteAll(ctx, subjectID)
}
