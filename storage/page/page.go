package page

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/latch"
)

// Page 缓冲池中的一个页面帧
//
// A Page is the in-memory image of a disk block plus the bookkeeping the
// buffer pool needs: page id, pin count, dirty flag and a reader/writer
// latch. The metadata fields are guarded by the buffer pool manager's mutex;
// the byte content is guarded by the page latch.
type Page struct {
	rwlatch  latch.ReaderWriterLatch
	data     [common.PageSize]byte
	pageID   common.PageID
	pinCount int
	isDirty  bool
}

// NewPage returns an empty frame.
func NewPage() *Page {
	p := &Page{}
	p.pageID = common.InvalidPageID
	return p
}

// Data 返回页面内容
func (p *Page) Data() []byte {
	return p.data[:]
}

// ID returns the id of the page this frame currently holds.
func (p *Page) ID() common.PageID {
	return p.pageID
}

// SetID assigns the page id. Called by the buffer pool under its mutex.
func (p *Page) SetID(id common.PageID) {
	p.pageID = id
}

// PinCount returns the current pin count.
func (p *Page) PinCount() int {
	return p.pinCount
}

// SetPinCount assigns the pin count. Called by the buffer pool under its mutex.
func (p *Page) SetPinCount(count int) {
	p.pinCount = count
}

// IncPinCount bumps the pin count by delta.
func (p *Page) IncPinCount(delta int) {
	p.pinCount += delta
}

// IsDirty 检查是否为脏页
func (p *Page) IsDirty() bool {
	return p.isDirty
}

// SetDirty 设置脏页标记
func (p *Page) SetDirty(dirty bool) {
	p.isDirty = dirty
}

// ResetMemory zeroes the page content.
func (p *Page) ResetMemory() {
	for i := range p.data {
		p.data[i] = 0
	}
}

// WLatch 获取页面写锁
func (p *Page) WLatch() {
	p.rwlatch.WLock()
}

// WUnlatch 释放页面写锁
func (p *Page) WUnlatch() {
	p.rwlatch.WUnlock()
}

// RLatch 获取页面读锁
func (p *Page) RLatch() {
	p.rwlatch.RLock()
}

// RUnlatch 释放页面读锁
func (p *Page) RUnlatch() {
	p.rwlatch.RUnlock()
}
