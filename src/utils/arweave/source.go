package arweave

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/utils/logger"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Reads the chain from an Arweave node.
// Tags never change once a transaction is mined, so they are cached.
type Source struct {
	log    *logrus.Entry
	client *Client
	tags   *cache.Cache
}

func NewSource(config *config.Arweave) (self *Source) {
	self = new(Source)
	self.log = logger.NewSublogger("arweave-source")
	self.client = NewClient(config)
	self.tags = cache.New(config.TagCacheTTL, 2*config.TagCacheTTL)
	return
}

func (self *Source) GetTip(ctx context.Context) (out chain.Tip, err error) {
	info, err := self.client.GetNetworkInfo(ctx)
	if err != nil {
		return
	}
	if info.Height <= 0 || info.Current == "" {
		err = fmt.Errorf("%w: network info without current block", ErrBadResponse)
		return
	}
	return chain.Tip{Height: info.Height, Hash: info.Current}, nil
}

func (self *Source) GetHeader(ctx context.Context, height int64) (out *chain.BlockHeader, err error) {
	block, err := self.client.GetBlockByHeight(ctx, height)
	if err != nil {
		return
	}

	out, err = toHeader(block)
	if err != nil {
		return
	}

	if out.Height != height {
		self.log.WithField("requested", height).WithField("received", out.Height).Warn("Node returned a different block")
		return nil, fmt.Errorf("%w: requested %d, got %d", ErrHeightMismatch, height, out.Height)
	}
	return
}

func (self *Source) GetTags(ctx context.Context, txId string) (out chain.TagSet, err error) {
	cached, ok := self.tags.Get(txId)
	if ok {
		return cached.(chain.TagSet), nil
	}

	tags, err := self.client.GetTransactionTags(ctx, txId)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Transaction isn't indexed yet, it will be retried later
			err = fmt.Errorf("tags of %s: %w", txId, err)
		}
		return
	}

	out = toTagSet(tags)
	self.tags.SetDefault(txId, out)
	return
}

func toHeader(block *Block) (*chain.BlockHeader, error) {
	if block == nil || block.IndepHash == "" || block.Height <= 0 {
		return nil, ErrMalformedHeader
	}

	txs := block.Txs
	if txs == nil {
		txs = []string{}
	}

	return &chain.BlockHeader{
		Height:         block.Height,
		Hash:           block.IndepHash,
		PreviousHash:   block.PreviousBlock,
		Timestamp:      block.Timestamp,
		TransactionIds: txs,
	}, nil
}

// Later tags with the same name override earlier ones
func toTagSet(tags []Tag) chain.TagSet {
	out := make(chain.TagSet, len(tags))
	for _, tag := range tags {
		out[tag.Name.String()] = tag.Value.String()
	}
	return out
}
