package disk

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/logger"
)

// DiskManager 负责数据文件的页级读写
//
// Pages live at offset pageID*PageSize in a single data file. Reads beyond
// the current end of file yield a zero page; the file grows on write.
type DiskManager struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	numWrites uint64
	numReads  uint64
}

// NewDiskManager opens (creating if needed) the data file at path.
func NewDiskManager(path string) (*DiskManager, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Annotatef(err, "create data dir %s", dir)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "open data file %s", path)
	}
	return &DiskManager{file: f, path: path}, nil
}

// ReadPage 从磁盘读取一个页面
func (d *DiskManager) ReadPage(pageID common.PageID, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(buf) != common.PageSize {
		return errors.Errorf("read buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}
	offset := int64(pageID) * common.PageSize
	n, err := d.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return errors.Annotatef(err, "read page %d from %s", pageID, d.path)
	}
	if n < common.PageSize {
		// 文件尚未覆盖该页，补零
		for i := n; i < common.PageSize; i++ {
			buf[i] = 0
		}
		logger.Debugf("read page %d past end of file, zero filled %d bytes", pageID, common.PageSize-n)
	}
	d.numReads++
	return nil
}

// WritePage 将一个页面写入磁盘
func (d *DiskManager) WritePage(pageID common.PageID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(data) != common.PageSize {
		return errors.Errorf("write buffer must be %d bytes, got %d", common.PageSize, len(data))
	}
	offset := int64(pageID) * common.PageSize
	if _, err := d.file.WriteAt(data, offset); err != nil {
		return errors.Annotatef(err, "write page %d to %s", pageID, d.path)
	}
	d.numWrites++
	return nil
}

// Sync flushes the data file to stable storage.
func (d *DiskManager) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Annotatef(d.file.Sync(), "sync %s", d.path)
}

// Close 关闭数据文件
func (d *DiskManager) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.file.Sync(); err != nil {
		logger.Errorf("sync %s on close: %v", d.path, err)
	}
	return d.file.Close()
}

// NumWrites returns the number of page writes issued so far.
func (d *DiskManager) NumWrites() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numWrites
}

// NumReads returns the number of page reads issued so far.
func (d *DiskManager) NumReads() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numReads
}
