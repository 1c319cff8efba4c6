package watch

import (
	"encoding/json"

	"github.com/warp-contracts/blockwatch/src/chain"
)

// Outcome of one sync iteration
type SyncResult struct {
	// Number of blocks added to the window
	Synced int `json:"synced"`

	// Window after the iteration
	Window chain.Window `json:"window"`

	// Gap to the remote tip was bigger than the window, some blocks were skipped
	Missed bool `json:"missed"`

	// Fork was found and repaired
	Reorg bool `json:"reorg"`

	// Blocks removed from the window because they were replaced by the fork
	Discarded []chain.SyncedBlock `json:"discarded"`

	// Remote tip seen in this iteration
	Tip chain.Tip `json:"tip"`

	// Transactions that still wait for their tags
	TagsPending int `json:"tagsPending"`
}

func (self *SyncResult) IsNoop() bool {
	return self.Synced == 0 && !self.Reorg
}

func (self *SyncResult) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}
