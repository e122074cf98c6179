package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"blockforge/internal/filekey"
)

// PostgresStore persists version records in Postgres. The unique constraint
// on (subject_id, file_key, version_number) is the serialization point for
// concurrent writers: a loser of the race gets a unique violation and
// retries once with a freshly-read number.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreDB wraps an existing handle, mainly for tests.
func NewPostgresStoreDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS file_versions (
  id TEXT PRIMARY KEY,
  subject_id TEXT NOT NULL,
  file_key TEXT NOT NULL,
  content TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  version_number INTEGER NOT NULL,
  author_id TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  UNIQUE (subject_id, file_key, version_number)
);
CREATE INDEX IF NOT EXISTS idx_file_versions_subject ON file_versions (subject_id);
CREATE INDEX IF NOT EXISTS idx_file_versions_subject_key ON file_versions (subject_id, file_key);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) SaveIfChanged(ctx context.Context, subjectID string, key filekey.Key, content, authorID string) (bool, *Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return false, nil, err
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

	created, rec, err := s.tryInsert(ctx, subjectID, key, content, hash, authorID)
	if errors.Is(err, ErrConflict) {
		// Another writer took our number; re-read and try once more.
		created, rec, err = s.tryInsert(ctx, subjectID, key, content, hash, authorID)
	}
	return created, rec, err
}

func (s *PostgresStore) tryInsert(ctx context.Context, subjectID string, key filekey.Key, content, hash, authorID string) (bool, *Record, error) {
	var (
		latestHash sql.NullString
		latestNum  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT content_hash, version_number FROM file_versions
WHERE subject_id = $1 AND file_key = $2
ORDER BY version_number DESC LIMIT 1`, subjectID, string(key)).Scan(&latestHash, &latestNum)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, nil, err
	}
	if latestHash.Valid && latestHash.String == hash {
		rec, err := s.latest(ctx, subjectID, key)
		return false, rec, err
	}
	next := 1
	if latestNum.Valid {
		next = int(latestNum.Int64) + 1
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
	_, err = s.db.ExecContext(ctx, `
INSERT INTO file_versions (id, subject_id, file_key, content, content_hash, version_number, author_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.SubjectID, string(rec.FileKey), rec.Content, rec.ContentHash, rec.VersionNumber, rec.AuthorID, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil, ErrConflict
		}
		return false, nil, err
	}
	return true, &rec, nil
}

func (s *PostgresStore) latest(ctx context.Context, subjectID string, key filekey.Key) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, subject_id, file_key, content, content_hash, version_number, author_id, created_at
FROM file_versions WHERE subject_id = $1 AND file_key = $2
ORDER BY version_number DESC LIMIT 1`, subjectID, string(key))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) ListVersions(ctx context.Context, subjectID string, key filekey.Key, limit int) ([]Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	q := `
SELECT id, subject_id, file_key, content, content_hash, version_number, author_id, created_at
FROM file_versions WHERE subject_id = $1 AND file_key = $2
ORDER BY version_number DESC`
	args := []any{strings.TrimSpace(subjectID), string(key)}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListKeys(ctx context.Context, subjectID string) ([]filekey.Key, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT file_key FROM file_versions WHERE subject_id = $1 ORDER BY file_key`,
		strings.TrimSpace(subjectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []filekey.Key
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, filekey.Key(k))
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetVersion(ctx context.Context, versionID string) (*Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, subject_id, file_key, content, content_hash, version_number, author_id, created_at
FROM file_versions WHERE id = $1`, strings.TrimSpace(versionID))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) Prune(ctx context.Context, subjectID string, keep int) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	_, err := s.db.ExecContext(ctx, `
DELETE FROM file_versions v
USING (
  SELECT id, ROW_NUMBER() OVER (PARTITION BY file_key ORDER BY version_number DESC) AS rn
  FROM file_versions WHERE subject_id = $1
) ranked
WHERE v.id = ranked.id AND ranked.rn > $2`, strings.TrimSpace(subjectID), keep)
	return err
}

func (s *PostgresStore) DeleteAll(ctx context.Context, subjectID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_versions WHERE subject_id = $1`,
		strings.TrimSpace(subjectID))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec Record
		key string
	)
	err := row.Scan(&rec.ID, &rec.SubjectID, &key, &rec.Content, &rec.ContentHash,
		&rec.VersionNumber, &rec.AuthorID, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.FileKey = filekey.Key(key)
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
