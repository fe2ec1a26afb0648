package page

import (
	"bytes"

	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/util"
)

// Header page layout (page id 0):
//
//	offset 0 record count (4 bytes)
//	offset 4 records: (name[32], root page id[4]) * count
const (
	headerRecordNameSize = 32
	headerRecordSize     = headerRecordNameSize + 4

	offsetRecordCount = 0
	offsetRecords     = 4

	maxHeaderRecords = (common.PageSize - offsetRecords) / headerRecordSize
)

// HeaderPage 头页面视图，保存 index_name -> root_page_id 记录
type HeaderPage struct {
	page *Page
}

// AsHeaderPage interprets the frame bytes as the header page.
func AsHeaderPage(p *Page) *HeaderPage {
	return &HeaderPage{page: p}
}

// Init 初始化头页面
func (h *HeaderPage) Init() {
	h.setRecordCount(0)
}

func (h *HeaderPage) recordCount() int {
	return int(util.ReadUB4At(h.page.Data(), offsetRecordCount))
}

func (h *HeaderPage) setRecordCount(count int) {
	util.WriteUB4At(h.page.Data(), offsetRecordCount, uint32(count))
}

func (h *HeaderPage) recordOffset(index int) int {
	return offsetRecords + index*headerRecordSize
}

func (h *HeaderPage) nameAt(index int) string {
	off := h.recordOffset(index)
	raw := h.page.Data()[off : off+headerRecordNameSize]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

func (h *HeaderPage) findRecord(name string) int {
	for i := 0; i < h.recordCount(); i++ {
		if h.nameAt(i) == name {
			return i
		}
	}
	return -1
}

// InsertRecord 插入一条新记录，重名或页面已满返回false
func (h *HeaderPage) InsertRecord(name string, rootID common.PageID) bool {
	if len(name) >= headerRecordNameSize {
		return false
	}
	if h.recordCount() >= maxHeaderRecords {
		return false
	}
	if h.findRecord(name) >= 0 {
		return false
	}

	index := h.recordCount()
	off := h.recordOffset(index)
	data := h.page.Data()
	for i := 0; i < headerRecordNameSize; i++ {
		data[off+i] = 0
	}
	util.WriteBytesAt(data, off, []byte(name))
	util.WriteUB4At(data, off+headerRecordNameSize, uint32(int32(rootID)))
	h.setRecordCount(index + 1)
	return true
}

// UpdateRecord 更新已有记录的root页面ID，不存在返回false
func (h *HeaderPage) UpdateRecord(name string, rootID common.PageID) bool {
	index := h.findRecord(name)
	if index < 0 {
		return false
	}
	off := h.recordOffset(index)
	util.WriteUB4At(h.page.Data(), off+headerRecordNameSize, uint32(int32(rootID)))
	return true
}

// GetRootID 获取记录的root页面ID
func (h *HeaderPage) GetRootID(name string) (common.PageID, bool) {
	index := h.findRecord(name)
	if index < 0 {
		return common.InvalidPageID, false
	}
	off := h.recordOffset(index)
	return common.PageID(int32(util.ReadUB4At(h.page.Data(), off+headerRecordNameSize))), true
}

// DeleteRecord 删除记录，不存在返回false
func (h *HeaderPage) DeleteRecord(name string) bool {
	index := h.findRecord(name)
	if index < 0 {
		return false
	}
	count := h.recordCount()
	data := h.page.Data()
	copy(data[h.recordOffset(index):], data[h.recordOffset(index+1):h.recordOffset(count)])
	h.setRecordCount(count - 1)
	return true
}
