package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/container/hash"
	"github.com/zhukovaskychina/xstorage/logger"
	"github.com/zhukovaskychina/xstorage/storage/disk"
	"github.com/zhukovaskychina/xstorage/storage/page"
	"github.com/zhukovaskychina/xstorage/util"
)

const (
	// DefaultPoolSize 默认缓冲池大小（页数）
	DefaultPoolSize = 64
	// DefaultReplacerK 默认LRU-K的K值
	DefaultReplacerK = 2

	pageTableBucketSize = 8
)

// BufferPoolManager 缓冲池管理器
//
// A fixed array of frames fronted by an extendible-hash page table and an
// LRU-K replacer. A single mutex serialises every frame-state change; page
// content is protected by the per-page latches.
type BufferPoolManager struct {
	mu sync.Mutex

	poolSize    int
	pages       []*page.Page
	pageTable   *hash.ExtendibleHashTable[common.PageID, common.FrameID]
	replacer    *LRUKReplacer
	freeList    []common.FrameID
	diskManager *disk.DiskManager
	nextPageID  common.PageID

	// 统计信息
	stats struct {
		hits      uint64
		misses    uint64
		evictions uint64
		flushes   uint64
	}
}

// NewBufferPoolManager creates a pool of poolSize frames over the given disk
// manager, with an LRU-K replacer of the given k.
func NewBufferPoolManager(poolSize int, diskManager *disk.DiskManager, replacerK int) *BufferPoolManager {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if replacerK <= 0 {
		replacerK = DefaultReplacerK
	}

	bpm := &BufferPoolManager{
		poolSize: poolSize,
		pages:    make([]*page.Page, poolSize),
		pageTable: hash.NewExtendibleHashTable[common.PageID, common.FrameID](
			pageTableBucketSize,
			func(pid common.PageID) uint64 { return util.HashInt32(int32(pid)) },
		),
		replacer:    NewLRUKReplacer(poolSize, replacerK),
		diskManager: diskManager,
	}
	// Initially, every frame is in the free list.
	for i := 0; i < poolSize; i++ {
		bpm.pages[i] = page.NewPage()
		bpm.freeList = append(bpm.freeList, common.FrameID(i))
	}
	return bpm
}

// PoolSize returns the number of frames.
func (bpm *BufferPoolManager) PoolSize() int {
	return bpm.poolSize
}

// pickVictim grabs a frame from the free list, else evicts one. The caller
// holds bpm.mu.
func (bpm *BufferPoolManager) pickVictim() (common.FrameID, bool) {
	if len(bpm.freeList) > 0 {
		frameID := bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return frameID, true
	}
	frameID, ok := bpm.replacer.Evict()
	if ok {
		atomic.AddUint64(&bpm.stats.evictions, 1)
	}
	return frameID, ok
}

// evictFrame writes the frame back if dirty and drops its page table entry.
// The caller holds bpm.mu.
func (bpm *BufferPoolManager) evictFrame(frameID common.FrameID) error {
	victim := bpm.pages[frameID]
	if victim.IsDirty() {
		if err := bpm.diskManager.WritePage(victim.ID(), victim.Data()); err != nil {
			return NewError("evict", err)
		}
		atomic.AddUint64(&bpm.stats.flushes, 1)
		victim.SetDirty(false)
	}
	bpm.pageTable.Remove(victim.ID())
	return nil
}

// NewPage allocates a fresh page id on a victim frame, pinned once. Returns
// ErrBufferPoolFull when no frame is free or evictable.
func (bpm *BufferPoolManager) NewPage() (*page.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pickVictim()
	if !ok {
		return nil, NewError("new page", ErrBufferPoolFull)
	}
	if err := bpm.evictFrame(frameID); err != nil {
		return nil, err
	}

	p := bpm.pages[frameID]
	pageID := bpm.allocatePage()
	p.SetID(pageID)
	p.SetDirty(false)
	p.SetPinCount(1)
	p.ResetMemory()

	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	bpm.pageTable.Insert(pageID, frameID)
	return p, nil
}

// FetchPage returns the frame holding pageID, reading it from disk on a miss.
// The page comes back pinned; every fetch must be paired with an unpin.
func (bpm *BufferPoolManager) FetchPage(pageID common.PageID) (*page.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if !pageID.IsValid() {
		return nil, NewError("fetch page", ErrInvalidPageID)
	}

	if frameID, ok := bpm.pageTable.Find(pageID); ok {
		atomic.AddUint64(&bpm.stats.hits, 1)
		p := bpm.pages[frameID]
		p.IncPinCount(1)
		bpm.replacer.RecordAccess(frameID)
		bpm.replacer.SetEvictable(frameID, false)
		return p, nil
	}
	atomic.AddUint64(&bpm.stats.misses, 1)

	frameID, ok := bpm.pickVictim()
	if !ok {
		return nil, NewError("fetch page", ErrBufferPoolFull)
	}
	if err := bpm.evictFrame(frameID); err != nil {
		return nil, err
	}

	p := bpm.pages[frameID]
	p.SetID(pageID)
	p.SetDirty(false)
	p.SetPinCount(1)
	p.ResetMemory()
	if err := bpm.diskManager.ReadPage(pageID, p.Data()); err != nil {
		// 读失败的帧退回空闲链，不能留下半初始化的映射
		p.SetID(common.InvalidPageID)
		p.SetPinCount(0)
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, NewError("fetch page", err)
	}

	bpm.pageTable.Insert(pageID, frameID)
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	return p, nil
}

// UnpinPage drops one pin, ORing the dirty hint into the page's dirty flag.
// Returns false if the page is absent or already unpinned.
func (bpm *BufferPoolManager) UnpinPage(pageID common.PageID, dirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return false
	}
	p := bpm.pages[frameID]
	if p.PinCount() <= 0 {
		return false
	}
	p.IncPinCount(-1)
	if p.PinCount() == 0 {
		bpm.replacer.SetEvictable(frameID, true)
	}
	if dirty {
		p.SetDirty(true)
	}
	return true
}

// FlushPage writes the page to disk regardless of pin count and clears its
// dirty flag.
func (bpm *BufferPoolManager) FlushPage(pageID common.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if !pageID.IsValid() {
		return NewError("flush page", ErrInvalidPageID)
	}
	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return NewError("flush page", ErrPageNotFound)
	}
	p := bpm.pages[frameID]
	if err := bpm.diskManager.WritePage(p.ID(), p.Data()); err != nil {
		return NewError("flush page", err)
	}
	atomic.AddUint64(&bpm.stats.flushes, 1)
	p.SetDirty(false)
	return nil
}

// FlushAllPages writes every dirty resident page.
func (bpm *BufferPoolManager) FlushAllPages() {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	for _, p := range bpm.pages {
		if p.ID().IsValid() && p.IsDirty() {
			if err := bpm.diskManager.WritePage(p.ID(), p.Data()); err != nil {
				logger.Errorf("flush all: write page %d: %v", p.ID(), err)
				continue
			}
			atomic.AddUint64(&bpm.stats.flushes, 1)
			p.SetDirty(false)
		}
	}
}

// DeletePage drops the page from the pool and returns its frame to the free
// list. A non-resident page is a no-op; a pinned page returns ErrPagePinned.
func (bpm *BufferPoolManager) DeletePage(pageID common.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return nil
	}
	p := bpm.pages[frameID]
	if p.PinCount() != 0 {
		return NewError("delete page", ErrPagePinned)
	}

	if p.IsDirty() {
		if err := bpm.diskManager.WritePage(p.ID(), p.Data()); err != nil {
			return NewError("delete page", err)
		}
		atomic.AddUint64(&bpm.stats.flushes, 1)
		p.SetDirty(false)
	}
	bpm.pageTable.Remove(pageID)
	bpm.replacer.Remove(frameID)
	bpm.freeList = append(bpm.freeList, frameID)

	p.SetID(common.InvalidPageID)
	p.SetPinCount(0)
	p.SetDirty(false)
	p.ResetMemory()
	return nil
}

func (bpm *BufferPoolManager) allocatePage() common.PageID {
	pageID := bpm.nextPageID
	bpm.nextPageID++
	return pageID
}

// Stats returns a snapshot of the hit/miss/eviction/flush counters.
func (bpm *BufferPoolManager) Stats() map[string]uint64 {
	return map[string]uint64{
		"hits":      atomic.LoadUint64(&bpm.stats.hits),
		"misses":    atomic.LoadUint64(&bpm.stats.misses),
		"evictions": atomic.LoadUint64(&bpm.stats.evictions),
		"flushes":   atomic.LoadUint64(&bpm.stats.flushes),
	}
}
