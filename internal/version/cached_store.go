package version

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"blockforge/internal/filekey"
)

// CachedStore fronts a Store with an LRU over version listings and record
// lookups. Records are immutable, so a cached record only ever goes stale by
// deletion; listings are invalidated on every write path.
type CachedStore struct {
	origin Store
	lists  *lru.Cache[string, []Record]
	recs   *lru.Cache[string, Record]
}

func NewCachedStore(origin Store, entries int) (*CachedStore, error) {
	if entries <= 0 {
		entries = 256
	}
	lists, err := lru.New[string, []Record](entries)
	if err != nil {
		return nil, err
	}
	recs, err := lru.New[string, Record](entries * 4)
	if err != nil {
		return nil, err
	}
	return &CachedStore{origin: origin, lists: lists, recs: recs}, nil
}

func listKey(subjectID string, key filekey.Key) string {
	return subjectID + "\x00" + string(key)
}

func (s *CachedStore) SaveIfChanged(ctx context.Context, subjectID string, key filekey.Key, content, authorID string) (bool, *Record, error) {
	created, rec, err := s.origin.SaveIfChanged(ctx, subjectID, key, content, authorID)
	if created {
		s.lists.Remove(listKey(subjectID, key))
		if rec != nil {
			s.recs.Add(rec.ID, *rec)
		}
	}
	return created, rec, err
}

func (s *CachedStore) ListVersions(ctx context.Context, subjectID string, key filekey.Key, limit int) ([]Record, error) {
	// Only the unbounded listing is cached; limited reads slice it.
	if cached, ok := s.lists.Get(listKey(subjectID, key)); ok {
		if limit > 0 && len(cached) > limit {
			cached = cached[:limit]
		}
		return append([]Record(nil), cached...), nil
	}
	all, err := s.origin.ListVersions(ctx, subjectID, key, 0)
	if err != nil {
		return nil, err
	}
	s.lists.Add(listKey(subjectID, key), all)
	out := all
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]Record(nil), out...), nil
}

func (s *CachedStore) ListKeys(ctx context.Context, subjectID string) ([]filekey.Key, error) {
	return s.origin.ListKeys(ctx, subjectID)
}

func (s *CachedStore) GetVersion(ctx context.Context, versionID string) (*Record, error) {
	if rec, ok := s.recs.Get(versionID); ok {
		out := rec
		return &out, nil
	}
	rec, err := s.origin.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	s.recs.Add(rec.ID, *rec)
	return rec, nil
}

func (s *CachedStore) Prune(ctx context.Context, subjectID string, keep int) error {
	err := s.origin.Prune(ctx, subjectID, keep)
	s.purge()
	return err
}

func (s *CachedStore) DeleteAll(ctx context.Context, subjectID string) error {
	err := s.origin.DeleteAll(ctx, subjectID)
	s.purge()
	return err
}

// purge drops both caches wholesale. Prune and DeleteAll remove rows that
// cached entries may still reference; it is a cache, correctness never
// depends on it.
func (s *CachedStore) purge() {
	s.lists.Purge()
	s.recs.Purge()
}
