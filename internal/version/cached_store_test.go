package version

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockforge/internal/filekey"
)

// countingStore records how often the origin gets hit.
type countingStore struct {
	Store
	listCalls int
	getCalls  int
}

func (c *countingStore) ListVersions(ctx context.Context, subjectID string, key filekey.Key, limit int) ([]Record, error) {
	c.listCalls++
	return c.Store.ListVersions(ctx, subjectID, key, limit)
}

func (c *countingStore) GetVersion(ctx context.Context, versionID string) (*Record, error) {
	c.getCalls++
	return c.Store.GetVersion(ctx, versionID)
}

func TestCachedStoreListingsServedFromCache(t *testing.T) {
	origin := &countingStore{Store: NewMemoryStore()}
	cached, err := NewCachedStore(origin, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = cached.SaveIfChanged(ctx, subject, filekey.BlockJSON, "{}", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		recs, err := cached.ListVersions(ctx, subject, filekey.BlockJSON, 0)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	}
	assert.Equal(t, 1, origin.listCalls)
}

func TestCachedStoreInvalidatesOnCreate(t *testing.T) {
	origin := &countingStore{Store: NewMemoryStore()}
	cached, err := NewCachedStore(origin, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = cached.SaveIfChanged(ctx, subject, filekey.BlockJSON, "v1", "")
	require.NoError(t, err)
	_, err = cached.ListVersions(ctx, subject, filekey.BlockJSON, 0)
	require.NoError(t, err)

	_, _, err = cached.SaveIfChanged(ctx, subject, filekey.BlockJSON, "v2", "")
	require.NoError(t, err)

	recs, err := cached.ListVersions(ctx, subject, filekey.BlockJSON, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].VersionNumber)
}

func TestCachedStoreRecordLookup(t *testing.T) {
	origin := &countingStore{Store: NewMemoryStore()}
	cached, err := NewCachedStore(origin, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, rec, err := cached.SaveIfChanged(ctx, subject, filekey.ViewJS, "let x;", "")
	require.NoError(t, err)

	// Saved through the cache, so the first read already hits it.
	got, err := cached.GetVersion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 0, origin.getCalls)
}

func TestCachedStorePurgeOnPrune(t *testing.T) {
	origin := &countingStore{Store: NewMemoryStore()}
	cached, err := NewCachedStore(origin, 8)
	require.NoError(t, err)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c"} {
		_, _, err = cached.SaveIfChanged(ctx, subject, filekey.StyleCSS, content, "")
		require.NoError(t, err)
	}
	_, err = cached.ListVersions(ctx, subject, filekey.StyleCSS, 0)
	require.NoError(t, err)

	require.NoError(t, cached.Prune(ctx, subject, 1))
	recs, err := cached.ListVersions(ctx, subject, filekey.StyleCSS, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
