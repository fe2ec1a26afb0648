package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/concurrency"
)

func TestBPlusTreeConcurrentDelete(t *testing.T) {
	tree := newTestTree(t, 50, 2, 3)

	for k := int64(1); k <= 5; k++ {
		insertKey(t, tree, k)
	}

	// two workers split the removals [1,5] and [3,4]
	var wg sync.WaitGroup
	for _, part := range [][]int64{{1, 5}, {3, 4}} {
		wg.Add(1)
		go func(keys []int64) {
			defer wg.Done()
			txn := concurrency.NewTransaction()
			for _, k := range keys {
				tree.Remove(NewGenericKeyFromInteger(treeKeySize, k), txn)
			}
		}(part)
	}
	wg.Wait()

	lookupKey(t, tree, 2)
	for _, k := range []int64{1, 3, 4, 5} {
		var rids []common.RID
		assert.False(t, tree.GetValue(NewGenericKeyFromInteger(treeKeySize, k), &rids), "key %d", k)
	}
	assert.Equal(t, []int64{2}, collectKeys(tree))
}

func TestBPlusTreeConcurrentInsert(t *testing.T) {
	tree := newTestTree(t, 50, 32, 16)

	const workers = 8
	const maxKey = 999

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			txn := concurrency.NewTransaction()
			for k := int64(1); k <= maxKey; k++ {
				if k%workers != int64(w) {
					continue
				}
				key := NewGenericKeyFromInteger(treeKeySize, k)
				assert.True(t, tree.Insert(key, common.NewRIDFromInt64(k), txn), "insert %d", k)
			}
		}(w)
	}
	wg.Wait()

	for k := int64(1); k <= maxKey; k++ {
		lookupKey(t, tree, k)
	}

	got := collectKeys(tree)
	require.Len(t, got, maxKey)
	for i, k := range got {
		require.Equal(t, int64(i+1), k)
	}
}

func TestBPlusTreeConcurrentMixed(t *testing.T) {
	tree := newTestTree(t, 50, 32, 16)

	// seed with keys both workers race against
	for k := int64(1); k <= 100; k++ {
		insertKey(t, tree, k)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		txn := concurrency.NewTransaction()
		for k := int64(101); k <= 300; k++ {
			key := NewGenericKeyFromInteger(treeKeySize, k)
			tree.Insert(key, common.NewRIDFromInt64(k), txn)
		}
	}()
	go func() {
		defer wg.Done()
		txn := concurrency.NewTransaction()
		for k := int64(1); k <= 100; k++ {
			tree.Remove(NewGenericKeyFromInteger(treeKeySize, k), txn)
		}
	}()
	wg.Wait()

	var want []int64
	for k := int64(101); k <= 300; k++ {
		lookupKey(t, tree, k)
		want = append(want, k)
	}
	assert.Equal(t, want, collectKeys(tree))
}

func TestBPlusTreeChurnUnderTinyPool(t *testing.T) {
	tree := newTestTree(t, 10, 0, 0)

	for k := int64(1); k <= 500; k++ {
		insertKey(t, tree, k)
	}

	// half the workers insert the upper range, half delete the lower range
	const workers = 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			txn := concurrency.NewTransaction()
			if w%2 == 0 {
				for k := int64(501); k <= 1000; k++ {
					if k%int64(workers/2) != int64(w/2) {
						continue
					}
					key := NewGenericKeyFromInteger(treeKeySize, k)
					tree.Insert(key, common.NewRIDFromInt64(k), txn)
				}
			} else {
				for k := int64(1); k <= 500; k++ {
					if k%int64(workers/2) != int64(w/2) {
						continue
					}
					tree.Remove(NewGenericKeyFromInteger(treeKeySize, k), txn)
				}
			}
		}(w)
	}
	wg.Wait()

	var want []int64
	for k := int64(501); k <= 1000; k++ {
		want = append(want, k)
	}
	assert.Equal(t, want, collectKeys(tree))

	for k := int64(1); k <= 500; k++ {
		var rids []common.RID
		require.False(t, tree.GetValue(NewGenericKeyFromInteger(treeKeySize, k), &rids), "key %d", k)
	}
}
