package chain

import (
	"errors"
	"fmt"
)

var ErrWindowIndex = errors.New("window index out of range")

// Two consecutive blocks don't form a chain
type ChainLinkageError struct {
	LowerHeight int64
	UpperHeight int64

	// Hash of the lower block
	Expected string

	// Previous hash declared by the upper block
	Actual string
}

func (self *ChainLinkageError) Error() string {
	if self.UpperHeight != self.LowerHeight+1 {
		return fmt.Sprintf("chain linkage broken: block %d -> %d, heights aren't consecutive", self.LowerHeight, self.UpperHeight)
	}
	return fmt.Sprintf("chain linkage broken: block %d -> %d, previous hash %s != %s", self.LowerHeight, self.UpperHeight, short(self.Actual), short(self.Expected))
}

func IsChainLinkageError(err error) bool {
	var linkErr *ChainLinkageError
	return errors.As(err, &linkErr)
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
