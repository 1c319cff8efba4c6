package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/logger"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Window kept in LevelDB, one entry per block
type LevelStore struct {
	log *logrus.Entry
	db  *leveldb.DB
}

// Store in the given directory
func NewLevelStore(path string) (self *LevelStore, err error) {
	self = new(LevelStore)
	self.log = logger.NewSublogger("store-leveldb").WithField("path", path)

	self.db, err = leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return
}

// Store that lives only as long as the process
func NewMemoryLevelStore() (self *LevelStore, err error) {
	self = new(LevelStore)
	self.log = logger.NewSublogger("store-leveldb").WithField("path", "memory")

	self.db, err = leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return
}

func (self *LevelStore) Close() error {
	return self.db.Close()
}

func (self *LevelStore) LoadAll(ctx context.Context) (out []chain.SyncedBlock, err error) {
	iter := self.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		var block chain.SyncedBlock
		err = json.Unmarshal(iter.Value(), &block)
		if err != nil {
			return nil, fmt.Errorf("failed to decode block %s: %w", iter.Key(), err)
		}
		out = append(out, block)
	}

	err = iter.Error()
	if err != nil {
		return nil, err
	}

	self.log.WithField("blocks", len(out)).Debug("Loaded blocks")
	return
}

// Writes all blocks atomically
func (self *LevelStore) SaveMany(ctx context.Context, blocks []chain.SyncedBlock) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	batch := new(leveldb.Batch)
	for _, block := range blocks {
		var buf []byte
		buf, err = json.Marshal(block)
		if err != nil {
			return
		}
		batch.Put(HeightKey(block.Height()), buf)
	}

	return self.db.Write(batch, nil)
}

func (self *LevelStore) TrimBelow(ctx context.Context, height int64) error {
	return self.deleteRange(ctx, &util.Range{Limit: HeightKey(height)})
}

func (self *LevelStore) Clear(ctx context.Context) error {
	return self.deleteRange(ctx, nil)
}

func (self *LevelStore) deleteRange(ctx context.Context, r *util.Range) (err error) {
	iter := self.db.NewIterator(r, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		if err = ctx.Err(); err != nil {
			return
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
	}

	err = iter.Error()
	if err != nil {
		return
	}

	if batch.Len() == 0 {
		return nil
	}

	self.log.WithField("blocks", batch.Len()).Debug("Deleting blocks")
	return self.db.Write(batch, nil)
}
