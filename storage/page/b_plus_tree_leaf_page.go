package page

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/util"
)

// KeyComparator 键比较器，返回 <0, 0, >0
type KeyComparator func(a, b []byte) int

// PageFetcher is the slice of the buffer pool the page views need when a
// structural move has to touch children (re-parenting).
type PageFetcher interface {
	FetchPage(pageID common.PageID) (*Page, error)
	UnpinPage(pageID common.PageID, dirty bool) bool
}

// Leaf page layout, after the shared header:
//
//	offset 20 next page id (4 bytes)
//	offset 24 entries: (key[keySize], rid[8]) * size, sorted by key
const (
	offsetNextPageID = sharedHeaderSize
	leafHeaderSize   = sharedHeaderSize + 4

	ridSize = 8
)

// LeafPageCapacity returns how many entries of the given key width fit in a
// leaf page.
func LeafPageCapacity(keySize int) int {
	return (common.PageSize - leafHeaderSize) / (keySize + ridSize)
}

// BPlusTreeLeafPage 叶子页面视图
type BPlusTreeLeafPage struct {
	BPlusTreePage
	keySize int
}

// AsLeafPage interprets the frame bytes as a leaf page with the given key
// width.
func AsLeafPage(p *Page, keySize int) *BPlusTreeLeafPage {
	return &BPlusTreeLeafPage{BPlusTreePage: BPlusTreePage{page: p}, keySize: keySize}
}

// Init 初始化一个新的叶子页面
func (l *BPlusTreeLeafPage) Init(pageID, parentID common.PageID, maxSize int) {
	l.SetPageType(LeafIndexPage)
	l.SetSize(0)
	l.SetPageID(pageID)
	l.SetParentPageID(parentID)
	l.SetNextPageID(common.InvalidPageID)
	l.SetMaxSize(maxSize)
}

// GetNextPageID 获取下一个叶子页面ID
func (l *BPlusTreeLeafPage) GetNextPageID() common.PageID {
	return common.PageID(int32(util.ReadUB4At(l.page.Data(), offsetNextPageID)))
}

// SetNextPageID 设置下一个叶子页面ID
func (l *BPlusTreeLeafPage) SetNextPageID(id common.PageID) {
	util.WriteUB4At(l.page.Data(), offsetNextPageID, uint32(int32(id)))
}

func (l *BPlusTreeLeafPage) entryOffset(index int) int {
	return leafHeaderSize + index*(l.keySize+ridSize)
}

// KeyAt 获取指定下标的键
func (l *BPlusTreeLeafPage) KeyAt(index int) []byte {
	off := l.entryOffset(index)
	return l.page.Data()[off : off+l.keySize]
}

// ValueAt 获取指定下标的RID
func (l *BPlusTreeLeafPage) ValueAt(index int) common.RID {
	off := l.entryOffset(index) + l.keySize
	data := l.page.Data()
	return common.RID{
		PageID:  common.PageID(int32(util.ReadUB4At(data, off))),
		SlotNum: util.ReadUB4At(data, off+4),
	}
}

// GetItem returns the entry at index.
func (l *BPlusTreeLeafPage) GetItem(index int) ([]byte, common.RID) {
	return l.KeyAt(index), l.ValueAt(index)
}

func (l *BPlusTreeLeafPage) setEntryAt(index int, key []byte, value common.RID) {
	off := l.entryOffset(index)
	data := l.page.Data()
	util.WriteBytesAt(data, off, key)
	util.WriteUB4At(data, off+l.keySize, uint32(int32(value.PageID)))
	util.WriteUB4At(data, off+l.keySize+4, value.SlotNum)
}

// FindIndexByKey returns the lower bound of key: the first index whose key is
// not less than key, or size if no such entry exists.
func (l *BPlusTreeLeafPage) FindIndexByKey(key []byte, cmp KeyComparator) int {
	lo, hi := 0, l.GetSize()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(l.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup 在叶结点中找到key对应的RID
func (l *BPlusTreeLeafPage) Lookup(key []byte, cmp KeyComparator) (common.RID, bool) {
	index := l.FindIndexByKey(key, cmp)
	if index == l.GetSize() || cmp(l.KeyAt(index), key) != 0 {
		return common.RID{}, false
	}
	return l.ValueAt(index), true
}

// Insert places the entry at its sorted position, shifting larger entries
// right. The caller guarantees the key is not already present.
func (l *BPlusTreeLeafPage) Insert(key []byte, value common.RID, cmp KeyComparator) {
	index := l.FindIndexByKey(key, cmp)
	size := l.GetSize()
	entrySize := l.keySize + ridSize
	data := l.page.Data()

	start := l.entryOffset(index)
	end := l.entryOffset(size)
	copy(data[start+entrySize:end+entrySize], data[start:end])

	l.setEntryAt(index, key, value)
	l.IncreaseSize(1)
}

// Remove deletes the entry for key, shifting the tail left. Returns whether
// the key was present.
func (l *BPlusTreeLeafPage) Remove(key []byte, cmp KeyComparator) bool {
	index := l.FindIndexByKey(key, cmp)
	if index >= l.GetSize() || cmp(l.KeyAt(index), key) != 0 {
		return false
	}
	l.RemoveAt(index)
	return true
}

// RemoveAt deletes the entry at index.
func (l *BPlusTreeLeafPage) RemoveAt(index int) {
	size := l.GetSize()
	data := l.page.Data()
	copy(data[l.entryOffset(index):], data[l.entryOffset(index+1):l.entryOffset(size)])
	l.IncreaseSize(-1)
}

// MoveHalfTo transfers the upper half of the entries to an empty new sibling
// and links it into the leaf chain after this page.
func (l *BPlusTreeLeafPage) MoveHalfTo(dst *BPlusTreeLeafPage) {
	size := l.GetSize()
	half := size / 2

	src := l.page.Data()
	dstData := dst.page.Data()
	copy(dstData[dst.entryOffset(0):dst.entryOffset(size-half)],
		src[l.entryOffset(half):l.entryOffset(size)])

	dst.SetNextPageID(l.GetNextPageID())
	l.SetNextPageID(dst.PageID())

	dst.SetSize(size - half)
	l.SetSize(half)
}

// MoveAllTo appends every entry to the left sibling, which inherits this
// page's next pointer.
func (l *BPlusTreeLeafPage) MoveAllTo(dst *BPlusTreeLeafPage) {
	size := l.GetSize()
	dstSize := dst.GetSize()

	src := l.page.Data()
	dstData := dst.page.Data()
	copy(dstData[dst.entryOffset(dstSize):dst.entryOffset(dstSize+size)],
		src[l.entryOffset(0):l.entryOffset(size)])

	dst.IncreaseSize(size)
	dst.SetNextPageID(l.GetNextPageID())
	l.SetSize(0)
}
