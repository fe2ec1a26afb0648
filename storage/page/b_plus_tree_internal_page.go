package page

import (
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/util"
)

// Internal page layout, after the shared header:
//
//	offset 20 entries: (key[keySize], child page id[4]) * size
//
// The key of entry 0 is never read; only its child pointer is meaningful.
// The entry area keeps one spare slot beyond max size: an insert that
// triggers a split momentarily holds max size + 1 entries.
const (
	internalHeaderSize = sharedHeaderSize

	childIDSize = 4
)

// InternalPageCapacity returns the max size usable for internal pages of the
// given key width, leaving the spare overflow slot.
func InternalPageCapacity(keySize int) int {
	return (common.PageSize-internalHeaderSize)/(keySize+childIDSize) - 1
}

// BPlusTreeInternalPage 内部页面视图
type BPlusTreeInternalPage struct {
	BPlusTreePage
	keySize int
}

// AsInternalPage interprets the frame bytes as an internal page with the
// given key width.
func AsInternalPage(p *Page, keySize int) *BPlusTreeInternalPage {
	return &BPlusTreeInternalPage{BPlusTreePage: BPlusTreePage{page: p}, keySize: keySize}
}

// Init 初始化一个新的内部页面
func (ip *BPlusTreeInternalPage) Init(pageID, parentID common.PageID, maxSize int) {
	ip.SetPageType(InternalIndexPage)
	ip.SetSize(0)
	ip.SetPageID(pageID)
	ip.SetParentPageID(parentID)
	ip.SetMaxSize(maxSize)
}

func (ip *BPlusTreeInternalPage) entryOffset(index int) int {
	return internalHeaderSize + index*(ip.keySize+childIDSize)
}

// KeyAt 获取指定下标的键
func (ip *BPlusTreeInternalPage) KeyAt(index int) []byte {
	off := ip.entryOffset(index)
	return ip.page.Data()[off : off+ip.keySize]
}

// SetKeyAt 设置指定下标的键
func (ip *BPlusTreeInternalPage) SetKeyAt(index int, key []byte) {
	util.WriteBytesAt(ip.page.Data(), ip.entryOffset(index), key)
}

// ValueAt 获取指定下标的子页面ID
func (ip *BPlusTreeInternalPage) ValueAt(index int) common.PageID {
	off := ip.entryOffset(index) + ip.keySize
	return common.PageID(int32(util.ReadUB4At(ip.page.Data(), off)))
}

// SetValueAt 设置指定下标的子页面ID
func (ip *BPlusTreeInternalPage) SetValueAt(index int, child common.PageID) {
	off := ip.entryOffset(index) + ip.keySize
	util.WriteUB4At(ip.page.Data(), off, uint32(int32(child)))
}

// FindIndexByValue returns the index holding the given child page id, or -1.
func (ip *BPlusTreeInternalPage) FindIndexByValue(child common.PageID) int {
	for i := 0; i < ip.GetSize(); i++ {
		if ip.ValueAt(i) == child {
			return i
		}
	}
	return -1
}

// Lookup returns the child covering key: the child at the largest index whose
// key is not greater than key, entry 0's key acting as minus infinity.
func (ip *BPlusTreeInternalPage) Lookup(key []byte, cmp KeyComparator) common.PageID {
	// first index in [1, size) whose key is greater than key
	lo, hi := 1, ip.GetSize()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(ip.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return ip.ValueAt(lo - 1)
}

func (ip *BPlusTreeInternalPage) shiftRightFrom(index int) {
	size := ip.GetSize()
	entrySize := ip.keySize + childIDSize
	data := ip.page.Data()
	start := ip.entryOffset(index)
	end := ip.entryOffset(size)
	copy(data[start+entrySize:end+entrySize], data[start:end])
}

func (ip *BPlusTreeInternalPage) setEntryAt(index int, key []byte, child common.PageID) {
	ip.SetKeyAt(index, key)
	ip.SetValueAt(index, child)
}

// InsertNodeAfter places (key, newChild) immediately after the entry whose
// child pointer is oldChild.
func (ip *BPlusTreeInternalPage) InsertNodeAfter(oldChild common.PageID, key []byte, newChild common.PageID) {
	index := ip.FindIndexByValue(oldChild) + 1
	ip.shiftRightFrom(index)
	ip.setEntryAt(index, key, newChild)
	ip.IncreaseSize(1)
}

// InsertToStart shifts every entry right and writes (key, child) at index 0,
// re-parenting the moved child. Used by redistribution from the left sibling.
func (ip *BPlusTreeInternalPage) InsertToStart(key []byte, child common.PageID, bpm PageFetcher) {
	ip.shiftRightFrom(0)
	ip.setEntryAt(0, key, child)
	ip.IncreaseSize(1)
	ip.adoptChild(child, bpm)
}

// InsertToEnd appends (key, child), re-parenting the moved child. Used by
// redistribution from the right sibling.
func (ip *BPlusTreeInternalPage) InsertToEnd(key []byte, child common.PageID, bpm PageFetcher) {
	ip.setEntryAt(ip.GetSize(), key, child)
	ip.IncreaseSize(1)
	ip.adoptChild(child, bpm)
}

// RemoveAt deletes the entry at index, shifting the tail left.
func (ip *BPlusTreeInternalPage) RemoveAt(index int) {
	size := ip.GetSize()
	data := ip.page.Data()
	copy(data[ip.entryOffset(index):], data[ip.entryOffset(index+1):ip.entryOffset(size)])
	ip.IncreaseSize(-1)
}

// MoveHalfTo transfers the upper half of the entries to an empty new sibling
// and re-parents every moved child.
func (ip *BPlusTreeInternalPage) MoveHalfTo(dst *BPlusTreeInternalPage, bpm PageFetcher) {
	size := ip.GetSize()
	half := size / 2

	src := ip.page.Data()
	dstData := dst.page.Data()
	copy(dstData[dst.entryOffset(0):dst.entryOffset(size-half)],
		src[ip.entryOffset(half):ip.entryOffset(size)])

	dst.SetSize(size - half)
	ip.SetSize(half)

	for i := 0; i < dst.GetSize(); i++ {
		dst.adoptChild(dst.ValueAt(i), bpm)
	}
}

// MoveAllTo appends every entry to the left sibling, writing middleKey (the
// parent separator between the two) over the otherwise-invalid first key, and
// re-parents the moved children.
func (ip *BPlusTreeInternalPage) MoveAllTo(dst *BPlusTreeInternalPage, middleKey []byte, bpm PageFetcher) {
	size := ip.GetSize()
	dstSize := dst.GetSize()

	ip.SetKeyAt(0, middleKey)

	src := ip.page.Data()
	dstData := dst.page.Data()
	copy(dstData[dst.entryOffset(dstSize):dst.entryOffset(dstSize+size)],
		src[ip.entryOffset(0):ip.entryOffset(size)])

	dst.IncreaseSize(size)
	ip.SetSize(0)

	for i := dstSize; i < dst.GetSize(); i++ {
		dst.adoptChild(dst.ValueAt(i), bpm)
	}
}

func (ip *BPlusTreeInternalPage) adoptChild(child common.PageID, bpm PageFetcher) {
	childPage, err := bpm.FetchPage(child)
	if err != nil {
		// 取不到子页面说明缓冲池耗尽，属于不可恢复状态
		panic(err)
	}
	AsBPlusTreePage(childPage).SetParentPageID(ip.PageID())
	bpm.UnpinPage(child, true)
}
