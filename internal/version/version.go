// Package version keeps the append-only, content-addressed history of every
// committed file: hash-deduplicated records, monotonic per-file version
// numbers, bounded retention, diff and restore.
package version

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"blockforge/internal/filekey"
)

var (
	// ErrNotFound reports a missing version record.
	ErrNotFound = errors.New("version not found")
	// ErrConflict reports a duplicate version number under concurrent write.
	ErrConflict = errors.New("version number conflict")
	// ErrKeyMismatch reports a diff across two different files.
	ErrKeyMismatch = errors.New("versions belong to different files")
	// ErrSubjectMismatch reports a restore against the wrong subject.
	ErrSubjectMismatch = errors.New("version belongs to a different subject")
)

// DefaultKeep is the retention bound applied when pruning without an
// explicit keep count.
const DefaultKeep = 30

// Record is one immutable snapshot of a single file's content. Records are
// created on commit, hard-deleted by retention or subject deletion, and
// never mutated in place.
type Record struct {
	ID            string      `json:"id"`
	SubjectID     string      `json:"subjectId"`
	FileKey       filekey.Key `json:"fileKey"`
	Content       string      `json:"content"`
	ContentHash   string      `json:"contentHash"`
	VersionNumber int         `json:"versionNumber"`
	AuthorID      string      `json:"authorId"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Store persists version records.
//
// SaveIfChanged is the only writer: it hashes content, no-ops on empty
// content or an unchanged latest hash, and otherwise inserts with
// versionNumber = latest+1. Number assignment is serialized per
// (subjectID, fileKey); concurrent writers must not mint duplicates.
type Store interface {
	SaveIfChanged(ctx context.Context, subjectID string, key filekey.Key, content, authorID string) (created bool, rec *Record, err error)
	// ListVersions returns records newest-first, at most limit (<=0: all).
	ListVersions(ctx context.Context, subjectID string, key filekey.Key, limit int) ([]Record, error)
	// ListKeys returns every fileKey with history for the subject.
	ListKeys(ctx context.Context, subjectID string) ([]filekey.Key, error)
	// GetVersion fetches one record by id.
	GetVersion(ctx context.Context, versionID string) (*Record, error)
	// Prune retains the keep most recent records per fileKey and
	// hard-deletes the rest.
	Prune(ctx context.Context, subjectID string, keep int) error
	// DeleteAll hard-deletes the subject's entire history.
	DeleteAll(ctx context.Context, subjectID string) error
}

// HashContent returns the stable hex SHA-256 hash used for dedup.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
