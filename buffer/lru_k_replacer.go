package buffer

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/zhukovaskychina/xstorage/common"
)

// frameInfo 被跟踪帧的访问记录
type frameInfo struct {
	frameID     common.FrameID
	accessCount int
	evictable   bool
}

// LRUKReplacer evicts the frame whose K-th most recent access is oldest.
//
// Frames with fewer than k recorded accesses live in the history list in
// first-access order and are preferred victims; frames with at least k
// accesses live in the cache list ordered by most recent access, least
// recently used end first.
type LRUKReplacer struct {
	mu           sync.Mutex
	replacerSize int
	k            int
	currSize     int
	historyList  *list.List
	cacheList    *list.List
	frameMap     map[common.FrameID]*list.Element
}

// NewLRUKReplacer 创建一个LRU-K替换器
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		replacerSize: numFrames,
		k:            k,
		historyList:  list.New(),
		cacheList:    list.New(),
		frameMap:     make(map[common.FrameID]*list.Element),
	}
}

// Evict removes and returns the best victim: the oldest evictable frame in
// the history list, else the least recently K-used evictable frame in the
// cache list. Returns false when nothing is evictable.
func (r *LRUKReplacer) Evict() (common.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.historyList.Front(); e != nil; e = e.Next() {
		info := e.Value.(*frameInfo)
		if info.evictable {
			r.historyList.Remove(e)
			delete(r.frameMap, info.frameID)
			r.currSize--
			return info.frameID, true
		}
	}

	for e := r.cacheList.Front(); e != nil; e = e.Next() {
		info := e.Value.(*frameInfo)
		if info.evictable {
			r.cacheList.Remove(e)
			delete(r.frameMap, info.frameID)
			r.currSize--
			return info.frameID, true
		}
	}
	return 0, false
}

// RecordAccess notes one access to the frame. An unknown frame enters the
// history list; the access that reaches k moves it to the cache list; once in
// the cache list every access moves it to the most recently used end.
func (r *LRUKReplacer) RecordAccess(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameID < 0 || int(frameID) >= r.replacerSize {
		panic(fmt.Sprintf("lru-k replacer: frame id %d out of range [0,%d)", frameID, r.replacerSize))
	}

	e, ok := r.frameMap[frameID]
	if !ok {
		info := &frameInfo{frameID: frameID, accessCount: 1}
		r.frameMap[frameID] = r.historyList.PushBack(info)
		return
	}

	info := e.Value.(*frameInfo)
	info.accessCount++
	switch {
	case info.accessCount == r.k:
		// 距离够了，从history移入cache
		r.historyList.Remove(e)
		r.frameMap[frameID] = r.cacheList.PushBack(info)
	case info.accessCount > r.k:
		r.cacheList.Remove(e)
		r.frameMap[frameID] = r.cacheList.PushBack(info)
	}
	// below k the record keeps its history position (FIFO by first access)
}

// SetEvictable toggles whether the frame may be chosen as a victim, adjusting
// the evictable count. Unknown frames are ignored.
func (r *LRUKReplacer) SetEvictable(frameID common.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.frameMap[frameID]
	if !ok {
		return
	}
	info := e.Value.(*frameInfo)
	if !info.evictable && evictable {
		info.evictable = true
		r.currSize++
	} else if info.evictable && !evictable {
		info.evictable = false
		r.currSize--
	}
}

// Remove forcibly drops the frame's record. Callers must not remove a pinned
// (non-evictable) frame; such calls are ignored.
func (r *LRUKReplacer) Remove(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.frameMap[frameID]
	if !ok {
		return
	}
	info := e.Value.(*frameInfo)
	if !info.evictable {
		return
	}
	if info.accessCount < r.k {
		r.historyList.Remove(e)
	} else {
		r.cacheList.Remove(e)
	}
	delete(r.frameMap, frameID)
	r.currSize--
}

// Size 返回当前可驱逐帧的数量
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
