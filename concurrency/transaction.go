package concurrency

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/storage/page"
)

// Transaction 单个树操作的上下文
//
// Carries the ordered set of pages whose write latches the operation still
// holds (a nil entry stands for the tree's root-id latch) and the set of
// pages emptied by the operation, deleted through the buffer pool once every
// latch is released.
type Transaction struct {
	pageSet        []*page.Page
	deletedPageSet map[common.PageID]struct{}
}

// NewTransaction 创建一个新的事务上下文
func NewTransaction() *Transaction {
	return &Transaction{
		deletedPageSet: make(map[common.PageID]struct{}),
	}
}

// AddIntoPageSet appends a latched page; nil records the root-id latch
// sentinel.
func (txn *Transaction) AddIntoPageSet(p *page.Page) {
	txn.pageSet = append(txn.pageSet, p)
}

// GetPageSet returns the held pages in insertion order.
func (txn *Transaction) GetPageSet() []*page.Page {
	return txn.pageSet
}

// ClearPageSet drops every held-page record.
func (txn *Transaction) ClearPageSet() {
	txn.pageSet = txn.pageSet[:0]
}

// AddIntoDeletedPageSet queues a page id for deletion after the operation.
func (txn *Transaction) AddIntoDeletedPageSet(pageID common.PageID) {
	txn.deletedPageSet[pageID] = struct{}{}
}

// GetDeletedPageSet returns the queued page ids.
func (txn *Transaction) GetDeletedPageSet() map[common.PageID]struct{} {
	return txn.deletedPageSet
}

// ClearDeletedPageSet empties the queued page ids.
func (txn *Transaction) ClearDeletedPageSet() {
	for pid := range txn.deletedPageSet {
		delete(txn.deletedPageSet, pid)
	}
}
