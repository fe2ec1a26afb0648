package page

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/util"
)

// IndexPageType B+树页面类型
type IndexPageType uint32

const (
	InvalidIndexPage IndexPageType = iota
	LeafIndexPage
	InternalIndexPage
)

// Shared header layout of every B+tree page, at the front of the frame:
//
//	offset 0  page type   (4 bytes)
//	offset 4  size        (4 bytes)
//	offset 8  max size    (4 bytes)
//	offset 12 parent id   (4 bytes, InvalidPageID at the root)
//	offset 16 page id     (4 bytes)
const (
	offsetPageType = 0
	offsetSize     = 4
	offsetMaxSize  = 8
	offsetParentID = 12
	offsetPageID   = 16

	sharedHeaderSize = 20
)

// BPlusTreePage 叶子页面和内部页面的公共头
//
// A view over the shared header. Leaf and internal views embed it; the page
// type field discriminates which concrete view applies.
type BPlusTreePage struct {
	page *Page
}

// AsBPlusTreePage interprets the frame bytes as a B+tree page header.
func AsBPlusTreePage(p *Page) *BPlusTreePage {
	return &BPlusTreePage{page: p}
}

// Page returns the underlying frame.
func (bp *BPlusTreePage) Page() *Page {
	return bp.page
}

// PageType 获取页面类型
func (bp *BPlusTreePage) PageType() IndexPageType {
	return IndexPageType(util.ReadUB4At(bp.page.Data(), offsetPageType))
}

// SetPageType 设置页面类型
func (bp *BPlusTreePage) SetPageType(t IndexPageType) {
	util.WriteUB4At(bp.page.Data(), offsetPageType, uint32(t))
}

// IsLeafPage 是否为叶子页面
func (bp *BPlusTreePage) IsLeafPage() bool {
	return bp.PageType() == LeafIndexPage
}

// IsRootPage reports whether this page has no parent.
func (bp *BPlusTreePage) IsRootPage() bool {
	return bp.ParentPageID() == common.InvalidPageID
}

// GetSize 获取当前条目数
func (bp *BPlusTreePage) GetSize() int {
	return int(int32(util.ReadUB4At(bp.page.Data(), offsetSize)))
}

// SetSize 设置当前条目数
func (bp *BPlusTreePage) SetSize(size int) {
	util.WriteUB4At(bp.page.Data(), offsetSize, uint32(int32(size)))
}

// IncreaseSize adds delta to the entry count.
func (bp *BPlusTreePage) IncreaseSize(delta int) {
	bp.SetSize(bp.GetSize() + delta)
}

// GetMaxSize 获取最大条目数
func (bp *BPlusTreePage) GetMaxSize() int {
	return int(int32(util.ReadUB4At(bp.page.Data(), offsetMaxSize)))
}

// SetMaxSize 设置最大条目数
func (bp *BPlusTreePage) SetMaxSize(maxSize int) {
	util.WriteUB4At(bp.page.Data(), offsetMaxSize, uint32(int32(maxSize)))
}

// GetMinSize returns the underflow bound: ceil(max/2) for internal pages,
// ceil((max-1)/2) for leaf pages.
func (bp *BPlusTreePage) GetMinSize() int {
	if bp.IsLeafPage() {
		return bp.GetMaxSize() / 2
	}
	return (bp.GetMaxSize() + 1) / 2
}

// ParentPageID 获取父页面ID
func (bp *BPlusTreePage) ParentPageID() common.PageID {
	return common.PageID(int32(util.ReadUB4At(bp.page.Data(), offsetParentID)))
}

// SetParentPageID 设置父页面ID
func (bp *BPlusTreePage) SetParentPageID(id common.PageID) {
	util.WriteUB4At(bp.page.Data(), offsetParentID, uint32(int32(id)))
}

// PageID 获取页面ID
func (bp *BPlusTreePage) PageID() common.PageID {
	return common.PageID(int32(util.ReadUB4At(bp.page.Data(), offsetPageID)))
}

// SetPageID 设置页面ID
func (bp *BPlusTreePage) SetPageID(id common.PageID) {
	util.WriteUB4At(bp.page.Data(), offsetPageID, uint32(int32(id)))
}
