package buffer

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/storage/page"
)

// PageGuard 持有一个已固定页面，defer Release 保证所有路径都解除固定
//
// The guard carries the dirty hint so call sites mark mutation where it
// happens and the unpin stays in one place.
type PageGuard struct {
	bpm   *BufferPoolManager
	page  *page.Page
	dirty bool
	done  bool
}

// FetchPageGuarded fetches a pinned page wrapped in a guard.
func (bpm *BufferPoolManager) FetchPageGuarded(pageID common.PageID) (*PageGuard, error) {
	p, err := bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return &PageGuard{bpm: bpm, page: p}, nil
}

// NewPageGuarded allocates a new pinned page wrapped in a guard.
func (bpm *BufferPoolManager) NewPageGuarded() (*PageGuard, error) {
	p, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	return &PageGuard{bpm: bpm, page: p}, nil
}

// Page returns the guarded frame.
func (g *PageGuard) Page() *page.Page {
	return g.page
}

// ID returns the guarded page's id.
func (g *PageGuard) ID() common.PageID {
	return g.page.ID()
}

// MarkDirty records that the caller mutated the page.
func (g *PageGuard) MarkDirty() {
	g.dirty = true
}

// Release unpins the page with the accumulated dirty hint. Safe to call more
// than once; only the first call unpins.
func (g *PageGuard) Release() {
	if g.done {
		return
	}
	g.done = true
	g.bpm.UnpinPage(g.page.ID(), g.dirty)
}
