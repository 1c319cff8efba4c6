package watch

import (
	"errors"

	"github.com/warp-contracts/blockwatch/src/chain"
)

var (
	// Work branch computed nothing to fetch
	ErrEmptyFetchPlan = errors.New("programmer error: zero-count fetch plan")

	// Fetched blocks don't form a chain, remote changed while they were downloaded
	ErrInconsistentBatch = errors.New("fetched blocks don't form a chain")
)

// Errors that mean the window can't be trusted anymore. Retrying won't help.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrEmptyFetchPlan) || chain.IsChainLinkageError(err)
}
