package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/warp-contracts/blockwatch/src/watch"

	"golang.org/x/exp/slices"
)

func short(hash string) string {
	if len(hash) > 5 {
		return hash[:5]
	}
	return hash
}

// Prints stored blocks, newest first: height, age in minutes, hash and previous hash
func Dump(ctx context.Context, store watch.Store, w io.Writer, now time.Time) (err error) {
	blocks, err := store.LoadAll(ctx)
	if err != nil {
		return
	}

	slices.Reverse(blocks)
	for _, block := range blocks {
		age := now.Sub(time.Unix(block.Header.Timestamp, 0)).Minutes()
		_, err = fmt.Fprintf(w, "%d %.2f %s %s\n", block.Height(), age, short(block.Hash()), short(block.PreviousHash()))
		if err != nil {
			return
		}
	}

	_, err = fmt.Fprintf(w, "%d blocks\n", len(blocks))
	return
}
