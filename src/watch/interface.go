package watch

import (
	"context"

	"github.com/warp-contracts/blockwatch/src/chain"
)

// Remote view of the chain
type Source interface {
	GetTip(ctx context.Context) (chain.Tip, error)

	// Header of the block at the given height of the current main chain
	GetHeader(ctx context.Context, height int64) (*chain.BlockHeader, error)

	// Decoded tags of a transaction
	GetTags(ctx context.Context, txId string) (chain.TagSet, error)
}

// Persistent copy of the window, keyed by height
type Store interface {
	// All stored blocks, ordered by height
	LoadAll(ctx context.Context) ([]chain.SyncedBlock, error)

	// Upserts blocks
	SaveMany(ctx context.Context, blocks []chain.SyncedBlock) error

	// Removes blocks below the given height
	TrimBelow(ctx context.Context, height int64) error

	Clear(ctx context.Context) error
}
