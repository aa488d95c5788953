package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func buildTree(t *testing.T) *ArtistTree {
	t.Helper()
	tree := NewArtistTree()
	// 1 <- 2 <- 4, 1 <- 3, 10 alone
	require.NoError(t, tree.Set(1, nil))
	require.NoError(t, tree.Set(2, ptr[int64](1)))
	require.NoError(t, tree.Set(3, ptr[int64](1)))
	require.NoError(t, tree.Set(4, ptr[int64](2)))
	require.NoError(t, tree.Set(10, nil))
	return tree
}

func TestArtistTree_RootAndAncestors(t *testing.T) {
	tree := buildTree(t)

	assert.Equal(t, int64(1), tree.Root(4))
	assert.Equal(t, int64(1), tree.Root(1))
	assert.Equal(t, int64(10), tree.Root(10))
	assert.Equal(t, int64(99), tree.Root(99))
	assert.Equal(t, []int64{2, 1}, tree.Ancestors(4))
	assert.Nil(t, tree.Ancestors(1))
}

func TestArtistTree_Descendants(t *testing.T) {
	tree := buildTree(t)

	assert.Equal(t, []int64{2, 3, 4}, tree.Descendants(1))
	assert.Equal(t, []int64{4}, tree.Descendants(2))
	assert.Empty(t, tree.Descendants(4))
	assert.Equal(t, []int64{2, 4}, tree.Subtree(2))
	assert.Equal(t, []int64{1, 10}, tree.Roots())
	assert.Equal(t, 5, tree.Len())
}

func TestArtistTree_RejectsCycles(t *testing.T) {
	tree := buildTree(t)

	err := tree.Set(1, ptr[int64](4))
	assert.ErrorIs(t, err, ErrArtistCycle)
	assert.ErrorIs(t, tree.Set(5, ptr[int64](5)), ErrArtistCycle)
	assert.ErrorIs(t, tree.CheckSet(2, ptr[int64](4)), ErrArtistCycle)

	// rejected changes leave the tree as it was
	assert.Equal(t, int64(1), tree.Root(4))
	assert.Equal(t, []int64{1, 10}, tree.Roots())
}

func TestArtistTree_Reparent(t *testing.T) {
	tree := buildTree(t)

	require.NoError(t, tree.Set(2, ptr[int64](10)))
	assert.Equal(t, int64(10), tree.Root(4))
	assert.Equal(t, []int64{3}, tree.Descendants(1))
	assert.Equal(t, []int64{2, 4}, tree.Descendants(10))

	require.NoError(t, tree.Set(2, nil))
	assert.Equal(t, int64(2), tree.Root(4))
}

func TestArtistTree_PlaceholderBase(t *testing.T) {
	tree := NewArtistTree()
	require.NoError(t, tree.Set(7, ptr[int64](6)))

	assert.Equal(t, int64(6), tree.Root(7))
	assert.False(t, tree.Contains(6))
	assert.Equal(t, 1, tree.Len())

	require.NoError(t, tree.Set(6, nil))
	assert.True(t, tree.Contains(6))
	assert.Equal(t, []int64{7}, tree.Descendants(6))
}

func TestArtistTree_Remove(t *testing.T) {
	tree := buildTree(t)

	orphans := tree.Remove(2)
	assert.Equal(t, []int64{4}, orphans)
	assert.Equal(t, int64(4), tree.Root(4))
	assert.Equal(t, []int64{3}, tree.Descendants(1))
	assert.False(t, tree.Contains(2))

	// freed slots are reused
	require.NoError(t, tree.Set(20, ptr[int64](3)))
	assert.Equal(t, int64(1), tree.Root(20))
	assert.Nil(t, tree.Remove(999))
}
