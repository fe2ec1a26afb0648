package common

import "fmt"

// RID 记录标识符：页号加槽号
type RID struct {
	PageID  PageID
	SlotNum uint32
}

// NewRID builds a RID from a page id and slot number.
func NewRID(pageID PageID, slotNum uint32) RID {
	return RID{PageID: pageID, SlotNum: slotNum}
}

// NewRIDFromInt64 unpacks a RID stored as page-id high bits, slot low bits.
func NewRIDFromInt64(v int64) RID {
	return RID{PageID: PageID(v >> 32), SlotNum: uint32(v)}
}

// ToInt64 packs the RID into a single integer.
func (r RID) ToInt64() int64 {
	return int64(r.PageID)<<32 | int64(r.SlotNum)
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.SlotNum)
}
