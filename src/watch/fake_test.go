package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/config"
)

var errNotFound = errors.New("not found")

// Remote chain kept in memory
type fakeChain struct {
	mtx      sync.Mutex
	headers  map[int64]chain.BlockHeader
	top      int64
	tags     map[string]chain.TagSet
	failing  map[int64]bool
	badTags  map[string]bool
	tipCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		headers: make(map[int64]chain.BlockHeader),
		tags:    make(map[string]chain.TagSet),
		failing: make(map[int64]bool),
		badTags: make(map[string]bool),
	}
}

func blockHash(fork string, height int64) string {
	return fmt.Sprintf("%s-%d", fork, height)
}

// Adds count blocks on top of the chain
func (self *fakeChain) grow(fork string, count int) *fakeChain {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	for i := 0; i < count; i++ {
		height := self.top + 1
		hash := blockHash(fork, height)
		txId := "tx-" + hash
		self.headers[height] = chain.BlockHeader{
			Height:         height,
			Hash:           hash,
			PreviousHash:   self.headers[self.top].Hash,
			Timestamp:      time.Now().Unix(),
			TransactionIds: []string{txId},
		}
		self.tags[txId] = chain.TagSet{"Block": hash}
		self.top = height
	}
	return self
}

// Replaces blocks from the given height up with count blocks of another fork
func (self *fakeChain) fork(from int64, fork string, count int) *fakeChain {
	self.mtx.Lock()
	for h := from; h <= self.top; h++ {
		delete(self.headers, h)
	}
	self.top = from - 1
	self.mtx.Unlock()

	return self.grow(fork, count)
}

func (self *fakeChain) corrupt(height int64, previousHash string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	header := self.headers[height]
	header.PreviousHash = previousHash
	self.headers[height] = header
}

func (self *fakeChain) setFailing(height int64, failing bool) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.failing[height] = failing
}

func (self *fakeChain) header(height int64) chain.BlockHeader {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.headers[height]
}

func (self *fakeChain) height() int64 {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.top
}

// Blocks [from..to] as synced blocks, tags unresolved
func (self *fakeChain) blocks(from, to int64) (out []chain.SyncedBlock) {
	for h := from; h <= to; h++ {
		out = append(out, chain.NewSyncedBlock(self.header(h)))
	}
	return
}

func (self *fakeChain) window(maxSize int, from, to int64) chain.Window {
	window, err := chain.NewWindow(maxSize, self.blocks(from, to)...)
	if err != nil {
		panic(err)
	}
	return window
}

func (self *fakeChain) tips() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.tipCalls
}

func (self *fakeChain) GetTip(ctx context.Context) (chain.Tip, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.tipCalls++
	return chain.Tip{Height: self.top, Hash: self.headers[self.top].Hash}, nil
}

func (self *fakeChain) GetHeader(ctx context.Context, height int64) (*chain.BlockHeader, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.failing[height] {
		return nil, fmt.Errorf("node unavailable for %d", height)
	}
	header, ok := self.headers[height]
	if !ok {
		return nil, errNotFound
	}
	return &header, nil
}

func (self *fakeChain) GetTags(ctx context.Context, txId string) (chain.TagSet, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.badTags[txId] {
		return nil, errors.New("malformed tags")
	}
	tags, ok := self.tags[txId]
	if !ok {
		return nil, errNotFound
	}
	return tags, nil
}

// Store kept in memory
type memoryStore struct {
	mtx     sync.Mutex
	blocks  map[int64]chain.SyncedBlock
	clears  int
	saves   int
	loadErr error
}

func newMemoryStore(blocks ...chain.SyncedBlock) *memoryStore {
	self := &memoryStore{blocks: make(map[int64]chain.SyncedBlock)}
	for _, b := range blocks {
		self.blocks[b.Height()] = b
	}
	return self
}

func (self *memoryStore) LoadAll(ctx context.Context) (out []chain.SyncedBlock, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.loadErr != nil {
		return nil, self.loadErr
	}
	for _, b := range self.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height() < out[j].Height() })
	return
}

func (self *memoryStore) SaveMany(ctx context.Context, blocks []chain.SyncedBlock) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.saves++
	for _, b := range blocks {
		self.blocks[b.Height()] = b
	}
	return nil
}

func (self *memoryStore) TrimBelow(ctx context.Context, height int64) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	for h := range self.blocks {
		if h < height {
			delete(self.blocks, h)
		}
	}
	return nil
}

func (self *memoryStore) Clear(ctx context.Context) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.clears++
	self.blocks = make(map[int64]chain.SyncedBlock)
	return nil
}

func (self *memoryStore) clearCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.clears
}

func (self *memoryStore) heights() (out []int64) {
	blocks, _ := self.LoadAll(context.Background())
	for _, b := range blocks {
		out = append(out, b.Height())
	}
	return
}

func testConfig(blocksToSync int) *config.Config {
	cfg := config.Default()
	cfg.StopTimeout = 5 * time.Second

	cfg.Watcher.BlocksToSync = blocksToSync
	cfg.Watcher.StartupDelay = 0
	cfg.Watcher.MinPollTime = 5 * time.Millisecond
	cfg.Watcher.MaxPollTime = 10 * time.Millisecond
	cfg.Watcher.BackoffInitialInterval = time.Millisecond
	cfg.Watcher.BackoffMaxInterval = 5 * time.Millisecond
	cfg.Watcher.MaxTipDeferrals = 0

	for _, r := range []*config.Retrieval{&cfg.Watcher.Blocks, &cfg.Watcher.Tags} {
		r.Concurrency = 4
		r.BatchDelay = 0
		r.MaxAttempts = 3
		r.BackoffInitialInterval = time.Millisecond
		r.BackoffMaxInterval = 2 * time.Millisecond
	}
	return cfg
}

// Chain whose tip request hangs until released
type stalledChain struct {
	*fakeChain
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStalledChain(remote *fakeChain) *stalledChain {
	return &stalledChain{
		fakeChain: remote,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (self *stalledChain) GetTip(ctx context.Context) (chain.Tip, error) {
	self.once.Do(func() { close(self.entered) })
	<-self.release
	return self.fakeChain.GetTip(ctx)
}
