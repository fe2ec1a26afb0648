package buffer

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/smartystreets/assertions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/storage/disk"
)

func newTestBPM(t *testing.T, poolSize int) *BufferPoolManager {
	t.Helper()
	dm, err := disk.NewDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return NewBufferPoolManager(poolSize, dm, 2)
}

func TestBufferPoolManagerBasic(t *testing.T) {
	bpm := newTestBPM(t, 10)

	t.Run("new page and write", func(t *testing.T) {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, common.PageID(0), p.ID())
		assert.Equal(t, 1, p.PinCount())

		copy(p.Data(), []byte("hello xstorage"))
	})

	t.Run("pool fills up", func(t *testing.T) {
		for i := 1; i < bpm.PoolSize(); i++ {
			p, err := bpm.NewPage()
			require.NoError(t, err)
			require.NotNil(t, p)
		}
		// every frame pinned, nothing free or evictable
		_, err := bpm.NewPage()
		require.Error(t, err)
		assert.True(t, IsBufferPoolFull(err))
	})

	t.Run("unpin frees frames", func(t *testing.T) {
		for pid := common.PageID(1); pid <= 5; pid++ {
			assert.True(t, bpm.UnpinPage(pid, false))
		}
		for i := 0; i < 5; i++ {
			p, err := bpm.NewPage()
			require.NoError(t, err)
			require.NotNil(t, p)
			bpm.UnpinPage(p.ID(), false)
		}
	})

	t.Run("double unpin rejected", func(t *testing.T) {
		// 0 is still pinned from the first subtest
		assert.True(t, bpm.UnpinPage(common.PageID(0), true))
		assert.False(t, bpm.UnpinPage(common.PageID(0), true))
	})
}

func TestBufferPoolManagerEvictionRoundTrip(t *testing.T) {
	bpm := newTestBPM(t, 3)

	p0, err := bpm.NewPage()
	require.NoError(t, err)
	pid0 := p0.ID()
	copy(p0.Data(), []byte("persisted through eviction"))
	require.True(t, bpm.UnpinPage(pid0, true))

	// churn enough new pages through the pool to evict page 0
	for i := 0; i < 6; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		bpm.UnpinPage(p.ID(), false)
	}

	p0again, err := bpm.FetchPage(pid0)
	require.NoError(t, err)
	want := "persisted through eviction"
	if msg := assertions.ShouldEqual(string(p0again.Data()[:len(want)]), want); msg != "" {
		t.Fatal(msg)
	}
	bpm.UnpinPage(pid0, false)
}

func TestBufferPoolManagerFetchHit(t *testing.T) {
	bpm := newTestBPM(t, 4)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	pid := p.ID()

	// a second reference bumps the pin count on the same frame
	same, err := bpm.FetchPage(pid)
	require.NoError(t, err)
	assert.Same(t, p, same)
	assert.Equal(t, 2, p.PinCount())

	assert.True(t, bpm.UnpinPage(pid, false))
	assert.True(t, bpm.UnpinPage(pid, false))
	assert.Equal(t, 0, p.PinCount())

	stats := bpm.Stats()
	assert.Equal(t, uint64(1), stats["hits"])
}

func TestBufferPoolManagerFlushAndDelete(t *testing.T) {
	bpm := newTestBPM(t, 4)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	pid := p.ID()
	copy(p.Data(), []byte("dirty bytes"))

	t.Run("flush clears dirty", func(t *testing.T) {
		require.True(t, bpm.UnpinPage(pid, true))
		assert.True(t, p.IsDirty())
		require.NoError(t, bpm.FlushPage(pid))
		assert.False(t, p.IsDirty())
	})

	t.Run("flush of unknown page fails", func(t *testing.T) {
		err := bpm.FlushPage(common.PageID(9999))
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		err = bpm.FlushPage(common.InvalidPageID)
		require.Error(t, err)
	})

	t.Run("delete pinned page rejected", func(t *testing.T) {
		p2, err := bpm.FetchPage(pid)
		require.NoError(t, err)
		err = bpm.DeletePage(p2.ID())
		require.Error(t, err)
		assert.True(t, IsPagePinned(err))
		bpm.UnpinPage(pid, false)
	})

	t.Run("delete unpinned page", func(t *testing.T) {
		require.NoError(t, bpm.DeletePage(pid))
		// absent page deletes are a no-op
		require.NoError(t, bpm.DeletePage(pid))
	})
}

func TestBufferPoolManagerFlushAllPages(t *testing.T) {
	bpm := newTestBPM(t, 8)

	var pids []common.PageID
	for i := 0; i < 5; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		copy(p.Data(), []byte{byte(i + 1)})
		pids = append(pids, p.ID())
		bpm.UnpinPage(p.ID(), true)
	}

	bpm.FlushAllPages()
	for _, pid := range pids {
		p, err := bpm.FetchPage(pid)
		require.NoError(t, err)
		assert.False(t, p.IsDirty())
		bpm.UnpinPage(pid, false)
	}
}

func TestBufferPoolManagerConcurrent(t *testing.T) {
	bpm := newTestBPM(t, 32)

	const workers = 8
	const pagesPerWorker = 20
	pids := make([][]common.PageID, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < pagesPerWorker; i++ {
				p, err := bpm.NewPage()
				if err != nil {
					continue
				}
				p.WLatch()
				copy(p.Data(), []byte{byte(w + 1), byte(i + 1)})
				p.WUnlatch()
				pids[w] = append(pids[w], p.ID())
				bpm.UnpinPage(p.ID(), true)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i, pid := range pids[w] {
			p, err := bpm.FetchPage(pid)
			require.NoError(t, err)
			p.RLatch()
			assert.Equal(t, byte(w+1), p.Data()[0])
			assert.Equal(t, byte(i+1), p.Data()[1])
			p.RUnlatch()
			bpm.UnpinPage(pid, false)
		}
	}
}
