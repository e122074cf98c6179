package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockforge/internal/contentstore"
	"blockforge/internal/filekey"
	"blockforge/internal/stream"
)

func patchOf(pairs ...string) *stream.PatchSet {
	files := make(map[filekey.Key]string)
	var order []filekey.Key
	for i := 0; i+1 < len(pairs); i += 2 {
		k := filekey.Key(pairs[i])
		files[k] = pairs[i+1]
		order = append(order, k)
	}
	return stream.NewPatchSet(files, order)
}

func TestOpenComputesChangedSet(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	require.NoError(t, content.WriteField(ctx, filekey.BlockJSON, `{"name":"x"}`))
	require.NoError(t, content.WriteField(ctx, filekey.StyleCSS, "body{}"))

	patch := patchOf(
		"block_json", `{"name":"x"}`, // unchanged
		"style_css", "body{margin:0}", // changed
		"view_js", "let a;", // new
	)
	sess, err := Open(ctx, patch, content)
	require.NoError(t, err)

	changed := sess.ListChangedFiles()
	assert.Equal(t, []filekey.Key{filekey.StyleCSS, filekey.ViewJS}, changed)

	_, ok := sess.Status(filekey.BlockJSON)
	assert.False(t, ok, "unchanged file must not be reviewable")
}

// Line-ending and edge-whitespace differences alone do not make a file
// reviewable.
func TestOpenNormalizesBeforeComparing(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	require.NoError(t, content.WriteField(ctx, filekey.ReadmeTXT, "hello\nworld\n"))

	sess, err := Open(ctx, patchOf("readme_txt", "hello\r\nworld"), content)
	require.NoError(t, err)
	assert.Empty(t, sess.ListChangedFiles())
}

func TestOrderedCoreFirstThenCustom(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()

	patch := patchOf(
		"admin_css", ".a{}",
		"view_js", "let a;",
		"block_json", "{}",
	)
	sess, err := Open(ctx, patch, content)
	require.NoError(t, err)
	assert.Equal(t,
		[]filekey.Key{filekey.BlockJSON, filekey.ViewJS, filekey.Key("admin_css")},
		sess.ListChangedFiles())
}

func TestStatusSticky(t *testing.T) {
	ctx := context.Background()
	sess, err := Open(ctx, patchOf("view_js", "let a;"), contentstore.NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, sess.SetStatus(filekey.ViewJS, StatusAccepted))
	err = sess.SetStatus(filekey.ViewJS, StatusRejected)
	assert.ErrorIs(t, err, ErrStatusSticky)

	st, _ := sess.Status(filekey.ViewJS)
	assert.Equal(t, StatusAccepted, st)
}

func TestSetStatusUnknownFile(t *testing.T) {
	ctx := context.Background()
	sess, err := Open(ctx, patchOf("view_js", "let a;"), contentstore.NewMemoryStore())
	require.NoError(t, err)
	assert.ErrorIs(t, sess.SetStatus(filekey.RenderPHP, StatusAccepted), ErrNotChanged)
}

func TestCursorAdvancesToNextPending(t *testing.T) {
	ctx := context.Background()
	patch := patchOf("block_json", "{}", "style_css", "a{}", "view_js", "x")
	sess, err := Open(ctx, patch, contentstore.NewMemoryStore())
	require.NoError(t, err)

	cur, _ := sess.CurrentFile()
	assert.Equal(t, filekey.BlockJSON, cur)

	require.NoError(t, sess.SetStatus(filekey.BlockJSON, StatusAccepted))
	cur, _ = sess.CurrentFile()
	assert.Equal(t, filekey.StyleCSS, cur)

	// Reviewing out of order: the cursor wraps to find the remaining pending.
	require.NoError(t, sess.SetStatus(filekey.ViewJS, StatusRejected))
	require.NoError(t, sess.SetStatus(filekey.StyleCSS, StatusAccepted))
	cur, _ = sess.CurrentFile()
	assert.Equal(t, filekey.StyleCSS, cur, "cursor stays put when nothing is pending")
}

func TestNavigateFileWraps(t *testing.T) {
	ctx := context.Background()
	patch := patchOf("block_json", "{}", "style_css", "a{}")
	sess, err := Open(ctx, patch, contentstore.NewMemoryStore())
	require.NoError(t, err)

	key, ok := sess.NavigateFile(-1)
	require.True(t, ok)
	assert.Equal(t, filekey.StyleCSS, key)
	key, _ = sess.NavigateFile(1)
	assert.Equal(t, filekey.BlockJSON, key)
	key, _ = sess.NavigateFile(3)
	assert.Equal(t, filekey.StyleCSS, key)
}

func TestCommitReviewedSkipsRejected(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	patch := patchOf("block_json", "{}", "style_css", "a{}", "view_js", "x")
	sess, err := Open(ctx, patch, content)
	require.NoError(t, err)

	require.NoError(t, sess.SetStatus(filekey.StyleCSS, StatusRejected))
	require.NoError(t, sess.SetStatus(filekey.BlockJSON, StatusAccepted))
	// view_js stays pending; CommitReviewed still writes it.

	res := sess.Commit(ctx, CommitReviewed)
	assert.Equal(t, []filekey.Key{filekey.BlockJSON, filekey.ViewJS}, res.Applied)
	assert.Equal(t, []filekey.Key{filekey.StyleCSS}, res.Skipped)
	assert.Empty(t, res.Failed)

	got, err := content.ReadField(ctx, filekey.BlockJSON)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
	got, err = content.ReadField(ctx, filekey.StyleCSS)
	require.NoError(t, err)
	assert.Empty(t, got, "rejected file must stay untouched")
}

func TestCommitAllIgnoresStatus(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	patch := patchOf("block_json", "{}", "style_css", "a{}")
	sess, err := Open(ctx, patch, content)
	require.NoError(t, err)

	require.NoError(t, sess.SetStatus(filekey.StyleCSS, StatusRejected))
	res := sess.Commit(ctx, CommitAll)
	assert.Len(t, res.Applied, 2)
	assert.Empty(t, res.Skipped)
}

func TestCommitRegistersNewCustomFiles(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	sess, err := Open(ctx, patchOf("admin_css", ".a{}"), content)
	require.NoError(t, err)

	res := sess.Commit(ctx, CommitAll)
	require.Equal(t, []filekey.Key{filekey.Key("admin_css")}, res.Applied)

	keys, err := content.Keys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, filekey.Key("admin_css"))
	got, err := content.ReadField(ctx, filekey.Key("admin_css"))
	require.NoError(t, err)
	assert.Equal(t, ".a{}", got)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	sess, err := Open(ctx, patchOf("view_js", "let a;"), content)
	require.NoError(t, err)

	sess.Discard()
	assert.True(t, sess.Discarded())
	assert.Empty(t, sess.ListChangedFiles())
	assert.ErrorIs(t, sess.SetStatus(filekey.ViewJS, StatusAccepted), ErrSessionClosed)

	res := sess.Commit(ctx, CommitAll)
	assert.Empty(t, res.Applied)
	got, _ := content.ReadField(ctx, filekey.ViewJS)
	assert.Empty(t, got)
}

func TestHunksAndNavigation(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	require.NoError(t, content.WriteField(ctx, filekey.StyleCSS, "a{}\nb{}\nc{}\n"))

	sess, err := Open(ctx, patchOf("style_css", "a{}\nB{}\nc{}\nd{}\n"), content)
	require.NoError(t, err)

	hunks := sess.Hunks(filekey.StyleCSS)
	require.Len(t, hunks, 2)
	assert.Equal(t, "replace", hunks[0].Tag)
	assert.Equal(t, "insert", hunks[1].Tag)

	h, ok := sess.CurrentHunk()
	require.True(t, ok)
	assert.Equal(t, hunks[0], h)

	h, ok = sess.NavigateHunk(1)
	require.True(t, ok)
	assert.Equal(t, hunks[1], h)
	h, _ = sess.NavigateHunk(1)
	assert.Equal(t, hunks[0], h, "hunk cursor wraps")
}

func TestReduceDrivesWorkflow(t *testing.T) {
	ctx := context.Background()
	content := contentstore.NewMemoryStore()
	patch := patchOf("block_json", "{}", "style_css", "a{}")
	sess, err := Open(ctx, patch, content)
	require.NoError(t, err)

	_, err = sess.Reduce(ctx, AcceptFile{Key: filekey.BlockJSON})
	require.NoError(t, err)
	_, err = sess.Reduce(ctx, RejectFile{Key: filekey.StyleCSS})
	require.NoError(t, err)

	res, err := sess.Reduce(ctx, ApplyReviewed{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []filekey.Key{filekey.BlockJSON}, res.Applied)
	assert.Equal(t, []filekey.Key{filekey.StyleCSS}, res.Skipped)
}
