package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xstorage/buffer"
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/storage/disk"
	"github.com/zhukovaskychina/xstorage/storage/page"
)

const treeKeySize = 8

// newTestTree builds a tree over a temp-file disk manager with the header
// page allocated at page 0.
func newTestTree(t *testing.T, poolSize, leafMaxSize, internalMaxSize int) *BPlusTree {
	t.Helper()
	dm, err := disk.NewDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	bpm := buffer.NewBufferPoolManager(poolSize, dm, 2)
	headerPage, err := bpm.NewPage()
	require.NoError(t, err)
	require.Equal(t, common.HeaderPageID, headerPage.ID())
	page.AsHeaderPage(headerPage).Init()
	bpm.UnpinPage(headerPage.ID(), true)

	return NewBPlusTree("test_index", bpm, IntegerComparator, treeKeySize, leafMaxSize, internalMaxSize)
}

func insertKey(t *testing.T, tree *BPlusTree, k int64) {
	t.Helper()
	key := NewGenericKeyFromInteger(treeKeySize, k)
	require.True(t, tree.Insert(key, common.NewRIDFromInt64(k), nil), "insert %d", k)
}

func lookupKey(t *testing.T, tree *BPlusTree, k int64) {
	t.Helper()
	var rids []common.RID
	key := NewGenericKeyFromInteger(treeKeySize, k)
	require.True(t, tree.GetValue(key, &rids), "lookup %d", k)
	require.Len(t, rids, 1)
	assert.Equal(t, common.NewRIDFromInt64(k), rids[0])
}

// collectKeys drains a forward scan from the leftmost leaf.
func collectKeys(tree *BPlusTree) []int64 {
	var keys []int64
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		keys = append(keys, it.Key().ToInteger())
	}
	return keys
}

func TestBPlusTreeLeafOnlyInsert(t *testing.T) {
	tree := newTestTree(t, 50, 4, 3)

	assert.True(t, tree.IsEmpty())
	insertKey(t, tree, 42)
	assert.False(t, tree.IsEmpty())
	assert.NotEqual(t, common.InvalidPageID, tree.GetRootPageID())

	lookupKey(t, tree, 42)
	assert.Equal(t, []int64{42}, collectKeys(tree))
}

func TestBPlusTreeSplitOnce(t *testing.T) {
	tree := newTestTree(t, 50, 2, 3)

	for k := int64(1); k <= 7; k++ {
		insertKey(t, tree, k)
	}
	for k := int64(1); k <= 7; k++ {
		lookupKey(t, tree, k)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, collectKeys(tree))
}

func TestBPlusTreeRandomInsert(t *testing.T) {
	tree := newTestTree(t, 50, 2, 3)

	keys := []int64{9, 101, 3, 2, 5, 7, 8, 4, 6, 10, 1, 12, 18, 20, 13, 17, 21}
	for _, k := range keys {
		insertKey(t, tree, k)
	}
	for _, k := range keys {
		lookupKey(t, tree, k)
	}

	got := collectKeys(tree)
	require.Len(t, got, len(keys))
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i], "iteration must be ascending")
	}
}

func TestBPlusTreeDuplicateInsert(t *testing.T) {
	tree := newTestTree(t, 50, 2, 3)

	key := NewGenericKeyFromInteger(treeKeySize, 7)
	require.True(t, tree.Insert(key, common.NewRIDFromInt64(7), nil))
	assert.False(t, tree.Insert(key, common.NewRIDFromInt64(999), nil))

	// the original value survives the rejected insert
	lookupKey(t, tree, 7)
	assert.Equal(t, []int64{7}, collectKeys(tree))
}

func TestBPlusTreeMissingKeyLookup(t *testing.T) {
	tree := newTestTree(t, 50, 2, 3)

	var rids []common.RID
	assert.False(t, tree.GetValue(NewGenericKeyFromInteger(treeKeySize, 1), &rids))

	insertKey(t, tree, 1)
	assert.False(t, tree.GetValue(NewGenericKeyFromInteger(treeKeySize, 2), &rids))
}

func TestBPlusTreeBeginFrom(t *testing.T) {
	tree := newTestTree(t, 50, 2, 3)

	for k := int64(2); k <= 20; k += 2 {
		insertKey(t, tree, k)
	}

	// exact key
	it := tree.BeginFrom(NewGenericKeyFromInteger(treeKeySize, 8))
	require.False(t, it.IsEnd())
	assert.Equal(t, int64(8), it.Key().ToInteger())
	it.Close()

	// between keys, lands on the lower bound
	it = tree.BeginFrom(NewGenericKeyFromInteger(treeKeySize, 9))
	require.False(t, it.IsEnd())
	assert.Equal(t, int64(10), it.Key().ToInteger())
	it.Close()

	// past every key
	it = tree.BeginFrom(NewGenericKeyFromInteger(treeKeySize, 100))
	assert.True(t, it.IsEnd())
	it.Close()
}

func TestBPlusTreeLargeSequentialInsert(t *testing.T) {
	tree := newTestTree(t, 50, 0, 0)

	for k := int64(1); k <= 2000; k++ {
		insertKey(t, tree, k)
	}
	for k := int64(1); k <= 2000; k++ {
		lookupKey(t, tree, k)
	}

	got := collectKeys(tree)
	require.Len(t, got, 2000)
	for i, k := range got {
		require.Equal(t, int64(i+1), k)
	}
}
