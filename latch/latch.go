package latch

import "sync"

// ReaderWriterLatch 提供页面和共享状态的短期读写锁
type ReaderWriterLatch struct {
	mu sync.RWMutex
}

// NewReaderWriterLatch 创建一个新的锁
func NewReaderWriterLatch() *ReaderWriterLatch {
	return &ReaderWriterLatch{}
}

// WLock 获取写锁
func (l *ReaderWriterLatch) WLock() {
	l.mu.Lock()
}

// WUnlock 释放写锁
func (l *ReaderWriterLatch) WUnlock() {
	l.mu.Unlock()
}

// RLock 获取读锁
func (l *ReaderWriterLatch) RLock() {
	l.mu.RLock()
}

// RUnlock 释放读锁
func (l *ReaderWriterLatch) RUnlock() {
	l.mu.RUnlock()
}

// TryWLock 尝试获取写锁
func (l *ReaderWriterLatch) TryWLock() bool {
	return l.mu.TryLock()
}

// TryRLock 尝试获取读锁
func (l *ReaderWriterLatch) TryRLock() bool {
	return l.mu.TryRLock()
}
