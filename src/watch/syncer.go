package watch

import (
	"context"
	"fmt"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/utils/retriever"
)

// Brings a window up to date with the remote chain, one iteration at a time.
// Not safe for concurrent use, iterations need to be run one after another.
type Syncer struct {
	config   *config.Watcher
	source   Source
	observer Observer

	blocks *retriever.Retriever[int64, *chain.BlockHeader]
	tags   *retriever.Retriever[string, chain.TagSet]

	// Consecutive iterations that postponed a same-height tip change
	deferrals int
}

func NewSyncer(config *config.Watcher) (self *Syncer) {
	self = new(Syncer)
	self.config = config
	self.observer = nopObserver{}

	self.blocks = retriever.New[int64, *chain.BlockHeader]("blocks").
		WithConcurrency(config.Blocks.Concurrency).
		WithBatchDelay(config.Blocks.BatchDelay).
		WithMaxAttempts(config.Blocks.MaxAttempts).
		WithBackoff(config.Blocks.BackoffInitialInterval, config.Blocks.BackoffMaxInterval).
		WithFetch(func(ctx context.Context, height int64) (*chain.BlockHeader, error) {
			return self.source.GetHeader(ctx, height)
		}).
		WithOnError(func(height int64, err error) {
			self.observer.OnEvent(Event{Kind: EventFetchFailed, Key: height, Err: err})
		})

	self.tags = retriever.New[string, chain.TagSet]("tags").
		WithConcurrency(config.Tags.Concurrency).
		WithBatchDelay(config.Tags.BatchDelay).
		WithMaxAttempts(config.Tags.MaxAttempts).
		WithBackoff(config.Tags.BackoffInitialInterval, config.Tags.BackoffMaxInterval).
		WithFetch(func(ctx context.Context, txId string) (chain.TagSet, error) {
			return self.source.GetTags(ctx, txId)
		}).
		WithOnError(func(txId string, err error) {
			self.observer.OnEvent(Event{Kind: EventFetchFailed, Key: txId, Err: err})
		})

	return
}

func (self *Syncer) WithSource(source Source) *Syncer {
	self.source = source
	return self
}

func (self *Syncer) WithObserver(observer Observer) *Syncer {
	if observer == nil {
		observer = nopObserver{}
	}
	self.observer = observer
	return self
}

// Single iteration with a fresh syncer. Same-height tip changes are always deferred.
func RunOneIteration(ctx context.Context, source Source, window chain.Window, config *config.Watcher) (*SyncResult, error) {
	return NewSyncer(config).WithSource(source).RunOneIteration(ctx, window)
}

// Fetches the remote tip and moves the window towards it.
// On error the passed window is untouched and should be used in the next try.
func (self *Syncer) RunOneIteration(ctx context.Context, window chain.Window) (out *SyncResult, err error) {
	tip, err := self.source.GetTip(ctx)
	if err != nil {
		err = fmt.Errorf("failed to get remote tip: %w", err)
		return
	}

	localHeight, localHash := window.TopHeight(), window.TopHash()
	self.observer.OnEvent(Event{Kind: EventTip, Tip: tip, LocalHeight: localHeight})

	switch {
	case localHeight > tip.Height:
		// Remote node lags behind
		return self.noop(window, tip), nil
	case localHeight == tip.Height && localHash == tip.Hash:
		return self.noop(window, tip), nil
	case localHeight == tip.Height:
		if self.deferrals < self.config.MaxTipDeferrals {
			self.deferrals++
			self.observer.OnEvent(Event{Kind: EventTipDeferred, Tip: tip, Count: self.deferrals})
			return noopResult(window, tip), nil
		}
		// Deferred long enough, replace the top block
		out, err = self.sync(ctx, window, tip, tip.Height)
	default:
		fetchCount := min(tip.Height-localHeight, int64(window.MaxSize()))
		if fetchCount < 1 {
			return nil, ErrEmptyFetchPlan
		}
		out, err = self.sync(ctx, window, tip, tip.Height-fetchCount+1)
	}
	if err != nil {
		return nil, err
	}

	self.deferrals = 0
	if out.Synced > 0 {
		self.observer.OnEvent(Event{Kind: EventSynced, Result: out})
	}
	return
}

func noopResult(window chain.Window, tip chain.Tip) *SyncResult {
	return &SyncResult{
		Window:    window,
		Tip:       tip,
		Discarded: []chain.SyncedBlock{},
	}
}

func (self *Syncer) noop(window chain.Window, tip chain.Tip) *SyncResult {
	self.deferrals = 0
	self.observer.OnEvent(Event{Kind: EventNoop, Tip: tip, LocalHeight: window.TopHeight()})
	return noopResult(window, tip)
}

// Fetches blocks [from..tip], repairs a fork if needed and assembles the new window
func (self *Syncer) sync(ctx context.Context, window chain.Window, tip chain.Tip, from int64) (out *SyncResult, err error) {
	localHeight := window.TopHeight()
	out = noopResult(window, tip)

	heights := make([]int64, 0, tip.Height-from+1)
	for h := from; h <= tip.Height; h++ {
		heights = append(heights, h)
	}

	headers, err := self.blocks.FetchAll(ctx, heights)
	if err != nil {
		return nil, err
	}

	batch := make([]chain.SyncedBlock, 0, len(headers))
	for _, header := range headers {
		batch = append(batch, chain.NewSyncedBlock(*header))
	}

	// Blocks at the height of the local top or above get replaced
	discarded := make([]chain.SyncedBlock, 0)
	for h := localHeight; h >= from; h-- {
		local, ok := window.Find(h)
		if !ok {
			break
		}
		if h == from && local.Hash() == batch[0].Hash() {
			// Tip switched back, nothing changed
			return out, nil
		}
		discarded = append(discarded, local)
	}

	// Fork is detected only if the batch starts right above the kept part of the window
	parent, hasParent := window.Find(from - 1)
	forked := hasParent && batch[0].PreviousHash() != parent.Hash()
	if forked {
		batch, discarded, err = self.walkBack(ctx, window, tip, batch, discarded)
		if err != nil {
			return nil, err
		}
	}

	if forked || len(discarded) > 0 {
		self.observer.OnEvent(Event{Kind: EventReorg, Height: batch[0].Height(), Count: len(discarded)})
	}

	// Remote could have changed while blocks were fetched
	err = chain.Validate(batch)
	if err != nil {
		// Not a linkage error of the window, retrying will fetch a consistent view
		return nil, fmt.Errorf("%w: %s", ErrInconsistentBatch, err.Error())
	}

	newWindow, err := window.ReplaceTail(len(discarded), batch)
	if err != nil {
		return nil, err
	}

	out.Window = newWindow
	out.Synced = len(batch)
	out.Reorg = forked || len(discarded) > 0
	out.Discarded = discarded
	out.Missed = from > localHeight+1
	if out.Missed {
		self.observer.OnEvent(Event{Kind: EventMissed, Tip: tip, LocalHeight: localHeight})
	}

	if self.config.RetrieveTags {
		out.Window, out.TagsPending, err = self.enrichTags(ctx, out.Window)
		if err != nil {
			return nil, err
		}
	}

	return
}
