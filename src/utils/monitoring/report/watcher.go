package report

import "go.uber.org/atomic"

type WatcherErrors struct {
	FetchFailures     atomic.Uint64 `json:"fetch"`
	IterationFailures atomic.Uint64 `json:"iteration"`
	TagFailures       atomic.Uint64 `json:"tags"`
	PersistFailures   atomic.Uint64 `json:"persist"`
}

type WatcherState struct {
	RemoteHeight      atomic.Int64 `json:"remote_height"`
	LocalHeight       atomic.Int64 `json:"local_height"`
	BlocksBehind      atomic.Int64 `json:"blocks_behind"`
	WindowSize        atomic.Int64 `json:"window_size"`
	LastSyncTimestamp atomic.Int64 `json:"last_sync_timestamp"`

	AverageBlocksPerMinute atomic.Float64 `json:"average_blocks_per_minute"`

	Iterations       atomic.Uint64 `json:"iterations"`
	BlocksSynced     atomic.Uint64 `json:"blocks_synced"`
	Reorgs           atomic.Uint64 `json:"reorgs"`
	DiscardedBlocks  atomic.Uint64 `json:"discarded_blocks"`
	MissedIterations atomic.Uint64 `json:"missed_iterations"`
	TipDeferrals     atomic.Uint64 `json:"tip_deferrals"`
	TagsPending      atomic.Int64  `json:"tags_pending"`
	WindowResets     atomic.Uint64 `json:"window_resets"`
}

type WatcherReport struct {
	State  WatcherState  `json:"state"`
	Errors WatcherErrors `json:"errors"`
}
