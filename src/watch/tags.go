package watch

import (
	"context"

	"github.com/warp-contracts/blockwatch/src/chain"
)

// Downloads tags of all unresolved transactions in the window.
// Failure of one transaction doesn't affect the others, it stays unresolved.
func (self *Syncer) enrichTags(ctx context.Context, window chain.Window) (out chain.Window, pending int, err error) {
	out = window

	var txIds []string
	for _, block := range window.Blocks() {
		txIds = append(txIds, block.UnresolvedTransactions()...)
	}
	if len(txIds) == 0 {
		return
	}

	tags, failed, err := self.tags.FetchEach(ctx, txIds)
	if err != nil {
		return window, 0, err
	}

	for txId, fetchErr := range failed {
		self.observer.OnEvent(Event{Kind: EventTagsFailed, Key: txId, Err: fetchErr})
	}

	for i, block := range window.Blocks() {
		update := make(map[string]chain.TxTags)
		for _, txId := range block.UnresolvedTransactions() {
			t, ok := tags[txId]
			if ok {
				update[txId] = chain.ResolvedTags(t)
			}
		}
		if len(update) == 0 {
			continue
		}

		out, err = out.WithBlock(i, block.WithTags(update))
		if err != nil {
			return window, 0, err
		}
	}

	return out, len(failed), nil
}
