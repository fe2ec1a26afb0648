package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zhukovaskychina/xstorage/buffer"
	"github.com/zhukovaskychina/xstorage/common"
	"github.com/zhukovaskychina/xstorage/conf"
	"github.com/zhukovaskychina/xstorage/logger"
	"github.com/zhukovaskychina/xstorage/storage/disk"
	"github.com/zhukovaskychina/xstorage/storage/index"
	"github.com/zhukovaskychina/xstorage/storage/page"
)

func main() {
	configPath := flag.String("config", "", "path to ini config file")
	flag.Parse()

	cfg, err := conf.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(logger.LogConfig{LogPath: cfg.LogPath, LogLevel: cfg.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	dm, err := disk.NewDiskManager(cfg.DataFilePath())
	if err != nil {
		logger.Errorf("open disk manager: %v", err)
		os.Exit(1)
	}
	defer dm.Close()

	bpm := buffer.NewBufferPoolManager(cfg.BufferPoolSize, dm, cfg.ReplacerK)

	// page 0 holds the index root records
	headerGuard, err := bpm.NewPageGuarded()
	if err != nil {
		logger.Errorf("allocate header page: %v", err)
		os.Exit(1)
	}
	page.AsHeaderPage(headerGuard.Page()).Init()
	headerGuard.MarkDirty()
	headerGuard.Release()

	tree := index.NewBPlusTree("demo_index", bpm, index.IntegerComparator, 8, 0, 0)

	logger.Infof("inserting 1..1000")
	for k := int64(1); k <= 1000; k++ {
		key := index.NewGenericKeyFromInteger(8, k)
		tree.Insert(key, common.NewRIDFromInt64(k), nil)
	}

	var rids []common.RID
	probe := index.NewGenericKeyFromInteger(8, 500)
	if tree.GetValue(probe, &rids) {
		logger.Infof("key 500 -> %s", rids[0])
	}

	count := 0
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		count++
	}
	logger.Infof("scanned %d entries, root page %d", count, tree.GetRootPageID())

	logger.Infof("removing odd keys")
	for k := int64(1); k <= 1000; k += 2 {
		tree.Remove(index.NewGenericKeyFromInteger(8, k), nil)
	}

	count = 0
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		count++
	}
	logger.Infof("%d entries remain", count)

	bpm.FlushAllPages()
	for name, v := range bpm.Stats() {
		logger.Infof("buffer pool %s: %d", name, v)
	}
}
