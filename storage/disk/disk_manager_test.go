package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xstorage/common"
)

func TestDiskManagerReadWrite(t *testing.T) {
	dm, err := NewDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	data := make([]byte, common.PageSize)
	copy(data, []byte("page five payload"))
	require.NoError(t, dm.WritePage(5, data))

	buf := make([]byte, common.PageSize)
	require.NoError(t, dm.ReadPage(5, buf))
	assert.Equal(t, data, buf)

	assert.Equal(t, uint64(1), dm.NumWrites())
	assert.Equal(t, uint64(1), dm.NumReads())
}

func TestDiskManagerReadPastEOF(t *testing.T) {
	dm, err := NewDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	buf := make([]byte, common.PageSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, dm.ReadPage(42, buf))
	for i, b := range buf {
		require.Equal(t, byte(0), b, "byte %d", i)
	}
}

func TestDiskManagerBadBufferSize(t *testing.T) {
	dm, err := NewDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	assert.Error(t, dm.ReadPage(0, make([]byte, 100)))
	assert.Error(t, dm.WritePage(0, make([]byte, 100)))
}
