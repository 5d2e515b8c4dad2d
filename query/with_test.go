package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(table string) *Builder {
	return New(table, buildTestMeta(), DefaultConfig(), nil)
}

func TestWithBareString(t *testing.T) {
	b := newBuilder("users")
	_, err := b.With("posts")
	require.NoError(t, err)
	assert.Len(t, b.withs, 1)
	assert.Equal(t, "posts", b.withs[0].path)
}

func TestWithStringSlice(t *testing.T) {
	b := newBuilder("posts")
	_, err := b.With([]string{"author", "tags"})
	require.NoError(t, err)
	assert.Len(t, b.withs, 2)
}

func TestWithMapCallbackForm(t *testing.T) {
	b := newBuilder("users")
	called := false
	_, err := b.With(map[string]func(*Builder) *Builder{
		"posts": func(inner *Builder) *Builder {
			called = true
			return inner
		},
	})
	require.NoError(t, err)
	assert.Len(t, b.withs, 1)
	assert.NotNil(t, b.withs[0].callback)
	b.withs[0].callback(newBuilder("posts"))
	assert.True(t, called)
}

func TestWithDottedChain(t *testing.T) {
	b := newBuilder("users")
	_, err := b.With("posts.tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "tags"}, b.withs[0].segments)
}

func TestWithUnknownRelationErrors(t *testing.T) {
	b := newBuilder("users")
	_, err := b.With("comments")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWithCircularRelationshipErrors(t *testing.T) {
	b := newBuilder("posts")
	_, err := b.With("parent.parent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Circular relationship")
}

func TestWithDepthLimitErrors(t *testing.T) {
	b := newBuilder("users")
	cfg := b.cfg
	cfg.MaxDepth = 1
	b.cfg = cfg
	_, err := b.With("posts.tags")
	require.Error(t, err)
	var depthErr *DepthLimitError
	assert.ErrorAs(t, err, &depthErr)
}

func TestWithEagerLoadLimitErrors(t *testing.T) {
	b := newBuilder("users")
	cfg := b.cfg
	cfg.MaxEagerLoad = 1
	b.cfg = cfg
	_, err := b.With("posts")
	require.NoError(t, err)
	_, err = b.With("posts.tags")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too many relationships")
}

func TestWithIdempotentForSameAlias(t *testing.T) {
	b := newBuilder("users")
	_, err := b.With("posts")
	require.NoError(t, err)
	_, err = b.With("posts")
	require.NoError(t, err)
	assert.Len(t, b.withs, 1)
}

func TestWithNilItemIsNoop(t *testing.T) {
	b := newBuilder("users")
	_, err := b.With(nil)
	require.NoError(t, err)
	assert.Empty(t, b.withs)
}
