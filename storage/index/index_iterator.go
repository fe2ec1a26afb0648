package index

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/storage/page"
)

// IndexIterator 叶子链上的前向迭代器
//
// Holds a read latch and a pin on its current leaf; Next hands both over to
// the following leaf. Close releases the final latch and pin, and must be
// called unless the iterator has been advanced to the end.
type IndexIterator struct {
	tree  *BPlusTree
	page  *page.Page
	leaf  *page.BPlusTreeLeafPage
	index int
}

// IsEnd reports whether the iterator has run off the last leaf.
func (it *IndexIterator) IsEnd() bool {
	if it.page == nil {
		return true
	}
	return it.index >= it.leaf.GetSize() && it.leaf.GetNextPageID() == common.InvalidPageID
}

// Key returns the key at the current position.
func (it *IndexIterator) Key() GenericKey {
	return GenericKey(it.leaf.KeyAt(it.index))
}

// Value returns the RID at the current position.
func (it *IndexIterator) Value() common.RID {
	return it.leaf.ValueAt(it.index)
}

// Next advances one entry, crossing to the next leaf when the current one is
// exhausted. Reaching the end releases the held latch and pin.
func (it *IndexIterator) Next() {
	if it.page == nil {
		return
	}
	it.index++
	it.skipExhaustedLeaves()
}

// skipExhaustedLeaves hops leaves until the index points at an entry or the
// chain ends.
func (it *IndexIterator) skipExhaustedLeaves() {
	for it.index >= it.leaf.GetSize() {
		next := it.leaf.GetNextPageID()
		if next == common.InvalidPageID {
			it.release()
			return
		}
		nextPage := it.tree.mustFetchPage(next)
		nextPage.RLatch()

		pid := it.page.ID()
		it.page.RUnlatch()
		it.tree.bpm.UnpinPage(pid, false)

		it.page = nextPage
		it.leaf = page.AsLeafPage(nextPage, it.tree.keySize)
		it.index = 0
	}
}

func (it *IndexIterator) release() {
	if it.page == nil {
		return
	}
	pid := it.page.ID()
	it.page.RUnlatch()
	it.tree.bpm.UnpinPage(pid, false)
	it.page = nil
	it.leaf = nil
}

// Close releases the latch and pin on the current leaf, if any.
func (it *IndexIterator) Close() {
	it.release()
}

// Begin returns an iterator at the first entry of the leftmost leaf.
func (t *BPlusTree) Begin() *IndexIterator {
	t.rootLatch.RLock()
	if t.IsEmpty() {
		t.rootLatch.RUnlock()
		return &IndexIterator{tree: t}
	}

	p := t.mustFetchPage(t.rootPageID)
	p.RLatch()
	t.rootLatch.RUnlock()

	node := page.AsBPlusTreePage(p)
	for !node.IsLeafPage() {
		internal := page.AsInternalPage(p, t.keySize)
		childPage := t.mustFetchPage(internal.ValueAt(0))
		childPage.RLatch()

		pid := p.ID()
		p.RUnlatch()
		t.bpm.UnpinPage(pid, false)

		p = childPage
		node = page.AsBPlusTreePage(p)
	}

	it := &IndexIterator{tree: t, page: p, leaf: page.AsLeafPage(p, t.keySize), index: 0}
	it.skipExhaustedLeaves()
	return it
}

// BeginFrom returns an iterator positioned at the lower bound of key.
func (t *BPlusTree) BeginFrom(key GenericKey) *IndexIterator {
	t.rootLatch.RLock()
	if t.IsEmpty() {
		t.rootLatch.RUnlock()
		return &IndexIterator{tree: t}
	}

	p := t.findLeaf(key, opSearch, nil)
	leaf := page.AsLeafPage(p, t.keySize)
	index := leaf.FindIndexByKey(key, t.comparator)

	it := &IndexIterator{tree: t, page: p, leaf: leaf, index: index}
	it.skipExhaustedLeaves()
	return it
}

// End returns the past-the-end sentinel.
func (t *BPlusTree) End() *IndexIterator {
	return &IndexIterator{tree: t}
}
