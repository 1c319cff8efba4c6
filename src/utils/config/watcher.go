package config

import (
	"time"

	"github.com/spf13/viper"
)

// Tuning of one kind of bounded retrieval
type Retrieval struct {
	// Max number of fetches in flight at once
	Concurrency int

	// Pause after each batch of fetches
	BatchDelay time.Duration

	// Number of tries for one key before the whole retrieval fails
	MaxAttempts uint64

	// Backoff between tries
	BackoffInitialInterval time.Duration
	BackoffMaxInterval     time.Duration
}

type Watcher struct {
	// Random pause between iterations is picked from [MinPollTime, MaxPollTime]
	MinPollTime time.Duration
	MaxPollTime time.Duration

	// Max number of blocks kept in the window
	BlocksToSync int

	// Pause before the first iteration
	StartupDelay time.Duration

	// Save the window between restarts
	Persist bool

	// Download tags of all transactions in the window
	RetrieveTags bool

	// How many iterations in a row a changed tip hash at an unchanged height is ignored
	MaxTipDeferrals int

	// What to do with a window that breaks the hash chain: true - start from scratch, false - stop.
	// Ignored in development mode, where a broken window always stops the watcher
	DiscardInvalidWindow bool

	// Backoff of a failed iteration. Iterations are retried forever
	BackoffInitialInterval time.Duration
	BackoffMaxInterval     time.Duration

	Blocks Retrieval
	Tags   Retrieval
}

func setWatcherDefaults() {
	viper.SetDefault("Watcher.MinPollTime", "65s")
	viper.SetDefault("Watcher.MaxPollTime", "150s")
	viper.SetDefault("Watcher.BlocksToSync", "20")
	viper.SetDefault("Watcher.StartupDelay", "120s")
	viper.SetDefault("Watcher.Persist", "false")
	viper.SetDefault("Watcher.RetrieveTags", "false")
	viper.SetDefault("Watcher.MaxTipDeferrals", "3")
	viper.SetDefault("Watcher.DiscardInvalidWindow", "false")
	viper.SetDefault("Watcher.BackoffInitialInterval", "1s")
	viper.SetDefault("Watcher.BackoffMaxInterval", "2m")

	viper.SetDefault("Watcher.Blocks.Concurrency", "4")
	viper.SetDefault("Watcher.Blocks.BatchDelay", "150ms")
	viper.SetDefault("Watcher.Blocks.MaxAttempts", "7")
	viper.SetDefault("Watcher.Blocks.BackoffInitialInterval", "500ms")
	viper.SetDefault("Watcher.Blocks.BackoffMaxInterval", "30s")

	viper.SetDefault("Watcher.Tags.Concurrency", "4")
	viper.SetDefault("Watcher.Tags.BatchDelay", "150ms")
	viper.SetDefault("Watcher.Tags.MaxAttempts", "7")
	viper.SetDefault("Watcher.Tags.BackoffInitialInterval", "500ms")
	viper.SetDefault("Watcher.Tags.BackoffMaxInterval", "30s")
}
