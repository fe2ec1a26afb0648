package index

import (
	"runtime"

	"github.com/zhukovaskychina/xstorage/buffer"
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/concurrency"
	"github.com/zhukovaskychina/xstorage/latch"
	"github.com/zhukovaskychina/xstorage/logger"
	"github.com/zhukovaskychina/xstorage/storage/page"
)

// operation 遍历B+树时的操作类型
type operation int

const (
	opSearch operation = iota
	opInsert
	opDelete
)

// BPlusTree 并发磁盘B+树索引
//
// Internal pages direct the search, leaf pages hold the data. Unique keys
// only. Descent uses latch crabbing: readers hand over read latches level by
// level; writers keep the chain of unsafe ancestors write-latched in the
// transaction's page set until the current child is proven safe.
//
// rootLatch protects the identity of the root page id, independently of the
// root page's own latch. The nil sentinel in the page set stands for it.
type BPlusTree struct {
	indexName       string
	rootPageID      common.PageID
	bpm             *buffer.BufferPoolManager
	comparator      page.KeyComparator
	keySize         int
	leafMaxSize     int
	internalMaxSize int
	rootLatch       latch.ReaderWriterLatch
}

// NewBPlusTree creates an empty tree. Zero max sizes derive the page-filling
// capacity from the key width.
func NewBPlusTree(name string, bpm *buffer.BufferPoolManager, cmp page.KeyComparator,
	keySize, leafMaxSize, internalMaxSize int) *BPlusTree {
	if leafMaxSize <= 0 {
		leafMaxSize = page.LeafPageCapacity(keySize)
	}
	if internalMaxSize <= 0 {
		internalMaxSize = page.InternalPageCapacity(keySize)
	}
	return &BPlusTree{
		indexName:       name,
		rootPageID:      common.InvalidPageID,
		bpm:             bpm,
		comparator:      cmp,
		keySize:         keySize,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}
}

// IsEmpty reports whether the tree has no root.
func (t *BPlusTree) IsEmpty() bool {
	return t.rootPageID == common.InvalidPageID
}

// GetRootPageID 返回root页面ID
func (t *BPlusTree) GetRootPageID() common.PageID {
	t.rootLatch.RLock()
	defer t.rootLatch.RUnlock()
	return t.rootPageID
}

// mustFetchPage fetches a page, retrying while the pool is exhausted: other
// operations unpin as they finish, so exhaustion is transient. Any other
// failure is fatal.
func (t *BPlusTree) mustFetchPage(pageID common.PageID) *page.Page {
	for {
		p, err := t.bpm.FetchPage(pageID)
		if err == nil {
			return p
		}
		if !buffer.IsBufferPoolFull(err) {
			logger.Errorf("btree %s: fetch page %d: %v", t.indexName, pageID, err)
			panic(err)
		}
		runtime.Gosched()
	}
}

func (t *BPlusTree) mustNewPage() *page.Page {
	for {
		p, err := t.bpm.NewPage()
		if err == nil {
			return p
		}
		if !buffer.IsBufferPoolFull(err) {
			logger.Errorf("btree %s: new page: %v", t.indexName, err)
			panic(err)
		}
		runtime.Gosched()
	}
}

// treeFetcher hands the page views a fetch path that rides the tree's
// pool-exhaustion retry.
type treeFetcher struct {
	t *BPlusTree
}

func (f treeFetcher) FetchPage(pageID common.PageID) (*page.Page, error) {
	return f.t.mustFetchPage(pageID), nil
}

func (f treeFetcher) UnpinPage(pageID common.PageID, dirty bool) bool {
	return f.t.bpm.UnpinPage(pageID, dirty)
}

func (t *BPlusTree) fetcher() page.PageFetcher {
	return treeFetcher{t: t}
}

// findLeaf descends from the root to the leaf covering key.
//
// Search hands over read latches and returns a read-latched, pinned leaf.
// Insert and Delete keep write latches on every ancestor that could still be
// changed by the operation, queueing them in the transaction's page set, and
// release the whole queue the moment a child is proven safe. The returned
// leaf is write-latched and pinned; it is never in the page set.
func (t *BPlusTree) findLeaf(key []byte, op operation, txn *concurrency.Transaction) *page.Page {
	p := t.mustFetchPage(t.rootPageID)
	node := page.AsBPlusTreePage(p)
	if op == opSearch {
		p.RLatch()
		t.rootLatch.RUnlock()
	} else {
		p.WLatch()
		if op == opDelete && node.GetSize() > 2 {
			t.releaseLatchFromQueue(txn)
		}
		if op == opInsert && node.IsLeafPage() && node.GetSize() < node.GetMaxSize()-1 {
			t.releaseLatchFromQueue(txn)
		}
		if op == opInsert && !node.IsLeafPage() && node.GetSize() < node.GetMaxSize() {
			t.releaseLatchFromQueue(txn)
		}
	}

	for !node.IsLeafPage() {
		internal := page.AsInternalPage(p, t.keySize)
		childPageID := internal.Lookup(key, t.comparator)

		childPage := t.mustFetchPage(childPageID)
		childNode := page.AsBPlusTreePage(childPage)

		switch op {
		case opSearch:
			childPage.RLatch()
			pid := p.ID()
			p.RUnlatch()
			t.bpm.UnpinPage(pid, false)
		case opInsert:
			childPage.WLatch()
			txn.AddIntoPageSet(p)

			// child node is safe, release all latches on ancestors
			if childNode.IsLeafPage() && childNode.GetSize() < childNode.GetMaxSize()-1 {
				t.releaseLatchFromQueue(txn)
			}
			if !childNode.IsLeafPage() && childNode.GetSize() < childNode.GetMaxSize() {
				t.releaseLatchFromQueue(txn)
			}
		case opDelete:
			childPage.WLatch()
			txn.AddIntoPageSet(p)

			if childNode.GetSize() > childNode.GetMinSize() {
				t.releaseLatchFromQueue(txn)
			}
		}

		p = childPage
		node = childNode
	}

	return p
}

// releaseLatchFromQueue unlatches and unpins every queued ancestor in
// insertion order; the nil sentinel releases the root-id latch.
func (t *BPlusTree) releaseLatchFromQueue(txn *concurrency.Transaction) {
	for _, p := range txn.GetPageSet() {
		if p == nil {
			t.rootLatch.WUnlock()
		} else {
			pid := p.ID()
			p.WUnlatch()
			t.bpm.UnpinPage(pid, false)
		}
	}
	txn.ClearPageSet()
}

/*****************************************************************************
 * SEARCH
 *****************************************************************************/

// GetValue appends the value stored under key to result and reports whether
// the key was present.
func (t *BPlusTree) GetValue(key GenericKey, result *[]common.RID) bool {
	t.rootLatch.RLock()
	if t.IsEmpty() {
		t.rootLatch.RUnlock()
		return false
	}

	p := t.findLeaf(key, opSearch, nil)
	leaf := page.AsLeafPage(p, t.keySize)
	value, ok := leaf.Lookup(key, t.comparator)

	pid := p.ID()
	p.RUnlatch()
	t.bpm.UnpinPage(pid, false)

	if ok {
		*result = append(*result, value)
	}
	return ok
}

/*****************************************************************************
 * INSERTION
 *****************************************************************************/

// Insert adds the key-value pair, returning false on a duplicate key.
func (t *BPlusTree) Insert(key GenericKey, value common.RID, txn *concurrency.Transaction) bool {
	if txn == nil {
		txn = concurrency.NewTransaction()
	}
	t.rootLatch.WLock()
	txn.AddIntoPageSet(nil)

	if t.IsEmpty() {
		t.startNewTree(key, value)
		t.releaseLatchFromQueue(txn)
		return true
	}

	p := t.findLeaf(key, opInsert, txn)
	leaf := page.AsLeafPage(p, t.keySize)

	// 唯一键约束
	if _, ok := leaf.Lookup(key, t.comparator); ok {
		t.releaseLatchFromQueue(txn)
		pid := p.ID()
		p.WUnlatch()
		t.bpm.UnpinPage(pid, false)
		return false
	}

	leaf.Insert(key, value, t.comparator)
	if leaf.GetSize() < t.leafMaxSize {
		t.releaseLatchFromQueue(txn)
		pid := p.ID()
		p.WUnlatch()
		t.bpm.UnpinPage(pid, true)
		return true
	}

	// 叶子结点满了，需要split
	newPage, newNode := t.splitPage(&leaf.BPlusTreePage)
	newLeaf := page.AsLeafPage(newPage, t.keySize)
	t.insertToParent(&leaf.BPlusTreePage, newNode, newLeaf.KeyAt(0), txn)

	pid := p.ID()
	p.WUnlatch()
	t.bpm.UnpinPage(pid, true)
	t.bpm.UnpinPage(newPage.ID(), true)
	return true
}

// startNewTree allocates a leaf root holding the first entry.
func (t *BPlusTree) startNewTree(key GenericKey, value common.RID) {
	p := t.mustNewPage()
	root := page.AsLeafPage(p, t.keySize)
	root.Init(p.ID(), common.InvalidPageID, t.leafMaxSize)
	root.Insert(key, value, t.comparator)

	t.rootPageID = p.ID()
	t.updateRootPageID(true)
	t.bpm.UnpinPage(p.ID(), true)
}

// splitPage moves the upper half of node onto a fresh page of the same kind
// and returns the new sibling, pinned.
func (t *BPlusTree) splitPage(node *page.BPlusTreePage) (*page.Page, *page.BPlusTreePage) {
	newPage := t.mustNewPage()

	if node.IsLeafPage() {
		oldLeaf := page.AsLeafPage(node.Page(), t.keySize)
		newLeaf := page.AsLeafPage(newPage, t.keySize)
		newLeaf.Init(newPage.ID(), node.ParentPageID(), t.leafMaxSize)
		oldLeaf.MoveHalfTo(newLeaf)
	} else {
		oldInternal := page.AsInternalPage(node.Page(), t.keySize)
		newInternal := page.AsInternalPage(newPage, t.keySize)
		newInternal.Init(newPage.ID(), node.ParentPageID(), t.internalMaxSize)
		oldInternal.MoveHalfTo(newInternal, t.fetcher())
	}
	return newPage, page.AsBPlusTreePage(newPage)
}

// insertToParent links a freshly split sibling under the parent of node,
// growing a new root or cascading the split upward as needed.
func (t *BPlusTree) insertToParent(node, newNode *page.BPlusTreePage, sepKey []byte, txn *concurrency.Transaction) {
	if node.IsRootPage() {
		rootPage := t.mustNewPage()
		root := page.AsInternalPage(rootPage, t.keySize)
		root.Init(rootPage.ID(), common.InvalidPageID, t.internalMaxSize)
		root.SetValueAt(0, node.PageID())
		root.SetKeyAt(1, sepKey)
		root.SetValueAt(1, newNode.PageID())
		root.SetSize(2)

		node.SetParentPageID(rootPage.ID())
		newNode.SetParentPageID(rootPage.ID())

		t.rootPageID = rootPage.ID()
		t.updateRootPageID(false)

		t.releaseLatchFromQueue(txn)
		t.bpm.UnpinPage(rootPage.ID(), true)
		return
	}

	parentPageID := node.ParentPageID()
	parentPage := t.mustFetchPage(parentPageID)
	parent := page.AsInternalPage(parentPage, t.keySize)

	if parent.GetSize() < t.internalMaxSize {
		parent.InsertNodeAfter(node.PageID(), sepKey, newNode.PageID())
		t.releaseLatchFromQueue(txn)
		t.bpm.UnpinPage(parentPageID, true)
		return
	}

	// 父结点也满了：先插入（借用预留槽位），再split，递归向上
	parent.InsertNodeAfter(node.PageID(), sepKey, newNode.PageID())
	newParentPage, newParentNode := t.splitPage(&parent.BPlusTreePage)
	newParent := page.AsInternalPage(newParentPage, t.keySize)
	t.insertToParent(&parent.BPlusTreePage, newParentNode, newParent.KeyAt(0), txn)

	t.bpm.UnpinPage(parentPageID, true)
	t.bpm.UnpinPage(newParentPage.ID(), true)
}

/*****************************************************************************
 * REMOVE
 *****************************************************************************/

// Remove deletes the key if present, rebalancing by redistribution or merge
// and releasing every emptied page through the buffer pool.
func (t *BPlusTree) Remove(key GenericKey, txn *concurrency.Transaction) {
	if txn == nil {
		txn = concurrency.NewTransaction()
	}
	t.rootLatch.WLock()
	txn.AddIntoPageSet(nil)

	if t.IsEmpty() {
		t.releaseLatchFromQueue(txn)
		return
	}

	p := t.findLeaf(key, opDelete, txn)
	leaf := page.AsLeafPage(p, t.keySize)

	if !leaf.Remove(key, t.comparator) {
		t.releaseLatchFromQueue(txn)
		pid := p.ID()
		p.WUnlatch()
		t.bpm.UnpinPage(pid, false)
		return
	}

	if leaf.GetSize() >= leaf.GetMinSize() {
		t.releaseLatchFromQueue(txn)
		pid := p.ID()
		p.WUnlatch()
		t.bpm.UnpinPage(pid, true)
		return
	}

	t.redistributeOrMerge(&leaf.BPlusTreePage, txn)

	pid := p.ID()
	p.WUnlatch()
	t.bpm.UnpinPage(pid, true)

	for deleted := range txn.GetDeletedPageSet() {
		if err := t.bpm.DeletePage(deleted); err != nil {
			logger.Warnf("btree %s: delete page %d: %v", t.indexName, deleted, err)
		}
	}
	txn.ClearDeletedPageSet()
}

// redistributeOrMerge restores the size invariant of an underfull node by
// borrowing from a sibling or merging with one, cascading to the parent when
// a merge empties its entry.
func (t *BPlusTree) redistributeOrMerge(node *page.BPlusTreePage, txn *concurrency.Transaction) {
	if node.IsRootPage() {
		if node.IsLeafPage() && node.GetSize() == 0 {
			t.rootPageID = common.InvalidPageID
			t.updateRootPageID(false)
			t.releaseLatchFromQueue(txn)
			txn.AddIntoDeletedPageSet(node.PageID())
			return
		}
		if !node.IsLeafPage() && node.GetSize() == 1 {
			// 只剩一个孩子，孩子升为root
			root := page.AsInternalPage(node.Page(), t.keySize)
			childPage := t.mustFetchPage(root.ValueAt(0))
			child := page.AsBPlusTreePage(childPage)
			child.SetParentPageID(common.InvalidPageID)
			t.rootPageID = child.PageID()
			t.updateRootPageID(false)
			t.bpm.UnpinPage(childPage.ID(), true)
			t.releaseLatchFromQueue(txn)
			txn.AddIntoDeletedPageSet(node.PageID())
			return
		}
		// root may stay below min size
		t.releaseLatchFromQueue(txn)
		return
	}

	if node.GetSize() >= node.GetMinSize() {
		t.releaseLatchFromQueue(txn)
		return
	}

	parentPage := t.mustFetchPage(node.ParentPageID())
	parent := page.AsInternalPage(parentPage, t.keySize)
	nodeIndex := parent.FindIndexByValue(node.PageID())

	// 先尝试向左右兄弟借结点，借不到才merge
	if nodeIndex > 0 {
		leftPage := t.mustFetchPage(parent.ValueAt(nodeIndex - 1))
		leftPage.WLatch()
		left := page.AsBPlusTreePage(leftPage)

		if left.GetSize() > left.GetMinSize() {
			t.redistributeLeft(left, node, parent, nodeIndex)
			t.releaseLatchFromQueue(txn)
			leftPage.WUnlatch()
			t.bpm.UnpinPage(leftPage.ID(), true)
			t.bpm.UnpinPage(parentPage.ID(), true)
			return
		}
		pid := leftPage.ID()
		leftPage.WUnlatch()
		t.bpm.UnpinPage(pid, false)
	}

	if nodeIndex < parent.GetSize()-1 {
		rightPage := t.mustFetchPage(parent.ValueAt(nodeIndex + 1))
		rightPage.WLatch()
		right := page.AsBPlusTreePage(rightPage)

		if right.GetSize() > right.GetMinSize() {
			t.redistributeRight(right, node, parent, nodeIndex)
			t.releaseLatchFromQueue(txn)
			rightPage.WUnlatch()
			t.bpm.UnpinPage(rightPage.ID(), true)
			t.bpm.UnpinPage(parentPage.ID(), true)
			return
		}
		pid := rightPage.ID()
		rightPage.WUnlatch()
		t.bpm.UnpinPage(pid, false)
	}

	if nodeIndex > 0 {
		leftPage := t.mustFetchPage(parent.ValueAt(nodeIndex - 1))
		leftPage.WLatch()
		left := page.AsBPlusTreePage(leftPage)

		t.merge(left, node, parent, nodeIndex, txn)
		txn.AddIntoDeletedPageSet(node.PageID())
		t.releaseLatchFromQueue(txn)
		leftPage.WUnlatch()
		t.bpm.UnpinPage(leftPage.ID(), true)
		t.bpm.UnpinPage(parentPage.ID(), true)
		return
	}

	rightPage := t.mustFetchPage(parent.ValueAt(nodeIndex + 1))
	rightPage.WLatch()
	right := page.AsBPlusTreePage(rightPage)

	t.merge(node, right, parent, nodeIndex+1, txn)
	txn.AddIntoDeletedPageSet(right.PageID())
	t.releaseLatchFromQueue(txn)
	rightPage.WUnlatch()
	t.bpm.UnpinPage(rightPage.ID(), true)
	t.bpm.UnpinPage(parentPage.ID(), true)
}

// merge empties right into left and removes right's entry from the parent;
// index is right's position in the parent.
func (t *BPlusTree) merge(left, right *page.BPlusTreePage, parent *page.BPlusTreeInternalPage,
	index int, txn *concurrency.Transaction) {
	if right.IsLeafPage() {
		page.AsLeafPage(right.Page(), t.keySize).MoveAllTo(page.AsLeafPage(left.Page(), t.keySize))
	} else {
		middleKey := parent.KeyAt(index)
		page.AsInternalPage(right.Page(), t.keySize).MoveAllTo(
			page.AsInternalPage(left.Page(), t.keySize), middleKey, t.fetcher())
	}
	parent.RemoveAt(index)
	t.redistributeOrMerge(&parent.BPlusTreePage, txn)
}

// redistributeLeft borrows the left sibling's last entry as node's first;
// index is node's position in the parent.
func (t *BPlusTree) redistributeLeft(left, node *page.BPlusTreePage, parent *page.BPlusTreeInternalPage, index int) {
	if left.IsLeafPage() {
		l := page.AsLeafPage(left.Page(), t.keySize)
		n := page.AsLeafPage(node.Page(), t.keySize)
		last := l.GetSize() - 1
		n.Insert(l.KeyAt(last), l.ValueAt(last), t.comparator)
		l.IncreaseSize(-1)
		parent.SetKeyAt(index, n.KeyAt(0))
		return
	}

	l := page.AsInternalPage(left.Page(), t.keySize)
	n := page.AsInternalPage(node.Page(), t.keySize)
	last := l.GetSize() - 1
	borrowKey := l.KeyAt(last)
	borrowChild := l.ValueAt(last)
	oldSep := parent.KeyAt(index)

	n.InsertToStart(borrowKey, borrowChild, t.fetcher())
	// 下移原分隔键：它现在分隔借来的孩子和原首孩子
	n.SetKeyAt(1, oldSep)
	l.IncreaseSize(-1)
	parent.SetKeyAt(index, borrowKey)
}

// redistributeRight borrows the right sibling's first entry as node's last;
// index is node's position in the parent.
func (t *BPlusTree) redistributeRight(right, node *page.BPlusTreePage, parent *page.BPlusTreeInternalPage, index int) {
	if right.IsLeafPage() {
		r := page.AsLeafPage(right.Page(), t.keySize)
		n := page.AsLeafPage(node.Page(), t.keySize)
		n.Insert(r.KeyAt(0), r.ValueAt(0), t.comparator)
		r.RemoveAt(0)
		parent.SetKeyAt(index+1, r.KeyAt(0))
		return
	}

	r := page.AsInternalPage(right.Page(), t.keySize)
	n := page.AsInternalPage(node.Page(), t.keySize)
	oldSep := parent.KeyAt(index + 1)

	n.InsertToEnd(oldSep, r.ValueAt(0), t.fetcher())
	parent.SetKeyAt(index+1, r.KeyAt(1))
	r.RemoveAt(0)
}

/*****************************************************************************
 * UTILITIES
 *****************************************************************************/

// updateRootPageID records the root change in the header page; insertRecord
// creates the record on first use.
func (t *BPlusTree) updateRootPageID(insertRecord bool) {
	headerPage := t.mustFetchPage(common.HeaderPageID)
	header := page.AsHeaderPage(headerPage)
	if insertRecord {
		header.InsertRecord(t.indexName, t.rootPageID)
	} else {
		header.UpdateRecord(t.indexName, t.rootPageID)
	}
	t.bpm.UnpinPage(common.HeaderPageID, true)
}

// InsertFromSlice inserts keys one by one, valuing each key as a RID packed
// from the key itself. Test harness hook.
func (t *BPlusTree) InsertFromSlice(keys []int64, txn *concurrency.Transaction) {
	for _, k := range keys {
		key := NewGenericKeyFromInteger(t.keySize, k)
		t.Insert(key, common.NewRIDFromInt64(k), txn)
	}
}

// RemoveFromSlice removes keys one by one. Test harness hook.
func (t *BPlusTree) RemoveFromSlice(keys []int64, txn *concurrency.Transaction) {
	for _, k := range keys {
		key := NewGenericKeyFromInteger(t.keySize, k)
		t.Remove(key, txn)
	}
}

// Print walks the tree through the logger at debug level.
func (t *BPlusTree) Print() {
	t.rootLatch.RLock()
	defer t.rootLatch.RUnlock()
	if t.IsEmpty() {
		logger.Debugf("btree %s: empty", t.indexName)
		return
	}
	t.printPage(t.rootPageID)
}

func (t *BPlusTree) printPage(pageID common.PageID) {
	p := t.mustFetchPage(pageID)
	node := page.AsBPlusTreePage(p)
	if node.IsLeafPage() {
		leaf := page.AsLeafPage(p, t.keySize)
		keys := make([]int64, 0, leaf.GetSize())
		for i := 0; i < leaf.GetSize(); i++ {
			keys = append(keys, GenericKey(leaf.KeyAt(i)).ToInteger())
		}
		logger.Debugf("leaf %d parent %d next %d keys %v",
			leaf.PageID(), leaf.ParentPageID(), leaf.GetNextPageID(), keys)
	} else {
		internal := page.AsInternalPage(p, t.keySize)
		children := make([]common.PageID, 0, internal.GetSize())
		for i := 0; i < internal.GetSize(); i++ {
			children = append(children, internal.ValueAt(i))
		}
		logger.Debugf("internal %d parent %d children %v",
			internal.PageID(), internal.ParentPageID(), children)
		for _, child := range children {
			t.printPage(child)
		}
	}
	t.bpm.UnpinPage(pageID, false)
}
