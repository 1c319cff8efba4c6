package watch

import (
	"context"

	"github.com/warp-contracts/blockwatch/src/chain"
)

// Walks down from the block below the batch, replacing local blocks with remote ones,
// until the common ancestor is found. Stops when:
// - there's no local block at the height, the whole window was on the fork
// - remote and local blocks share the parent
// - the horizon (remote tip minus window size) is reached, repair is partial then
func (self *Syncer) walkBack(ctx context.Context, window chain.Window, tip chain.Tip, batch, discarded []chain.SyncedBlock) ([]chain.SyncedBlock, []chain.SyncedBlock, error) {
	horizon := tip.Height - int64(window.MaxSize())

	height := batch[0].Height() - 1
	for ; height > horizon; height-- {
		header, err := self.blocks.FetchOne(ctx, height)
		if err != nil {
			return nil, nil, err
		}
		remote := chain.NewSyncedBlock(*header)
		batch = append([]chain.SyncedBlock{remote}, batch...)

		local, ok := window.Find(height)
		if !ok {
			return batch, discarded, nil
		}
		discarded = append(discarded, local)

		if remote.PreviousHash() == local.PreviousHash() {
			return batch, discarded, nil
		}
	}

	self.observer.OnEvent(Event{Kind: EventHorizonReached, Tip: tip, Height: height})
	return batch, discarded, nil
}
