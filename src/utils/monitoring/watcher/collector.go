package monitor_watcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// Run
	StartTimestamp *prometheus.Desc
	UpForSeconds   *prometheus.Desc

	// Watcher
	RemoteHeight           *prometheus.Desc
	LocalHeight            *prometheus.Desc
	BlocksBehind           *prometheus.Desc
	WindowSize             *prometheus.Desc
	LastSyncTimestamp      *prometheus.Desc
	AverageBlocksPerMinute *prometheus.Desc
	Iterations             *prometheus.Desc
	BlocksSynced           *prometheus.Desc
	Reorgs                 *prometheus.Desc
	DiscardedBlocks        *prometheus.Desc
	MissedIterations       *prometheus.Desc
	TipDeferrals           *prometheus.Desc
	TagsPending            *prometheus.Desc
	WindowResets           *prometheus.Desc

	// Redis publisher
	MessagesPublished *prometheus.Desc

	// Errors
	FetchFailures     *prometheus.Desc
	IterationFailures *prometheus.Desc
	TagFailures       *prometheus.Desc
	PersistFailures   *prometheus.Desc
	PublishFailures   *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "blockwatch",
	}

	return &Collector{
		// Run
		StartTimestamp: prometheus.NewDesc("start_timestamp", "", nil, labels),
		UpForSeconds:   prometheus.NewDesc("up_for_seconds", "", nil, labels),

		// Watcher
		RemoteHeight:           prometheus.NewDesc("watcher_remote_height", "", nil, labels),
		LocalHeight:            prometheus.NewDesc("watcher_local_height", "", nil, labels),
		BlocksBehind:           prometheus.NewDesc("watcher_blocks_behind", "", nil, labels),
		WindowSize:             prometheus.NewDesc("watcher_window_size", "", nil, labels),
		LastSyncTimestamp:      prometheus.NewDesc("watcher_last_sync_timestamp", "", nil, labels),
		AverageBlocksPerMinute: prometheus.NewDesc("watcher_average_blocks_per_minute", "", nil, labels),
		Iterations:             prometheus.NewDesc("watcher_iterations", "", nil, labels),
		BlocksSynced:           prometheus.NewDesc("watcher_blocks_synced", "", nil, labels),
		Reorgs:                 prometheus.NewDesc("watcher_reorgs", "", nil, labels),
		DiscardedBlocks:        prometheus.NewDesc("watcher_discarded_blocks", "", nil, labels),
		MissedIterations:       prometheus.NewDesc("watcher_missed_iterations", "", nil, labels),
		TipDeferrals:           prometheus.NewDesc("watcher_tip_deferrals", "", nil, labels),
		TagsPending:            prometheus.NewDesc("watcher_tags_pending", "", nil, labels),
		WindowResets:           prometheus.NewDesc("watcher_window_resets", "", nil, labels),

		// Redis publisher
		MessagesPublished: prometheus.NewDesc("redis_publisher_messages_published", "", nil, labels),

		// Errors
		FetchFailures:     prometheus.NewDesc("error_fetch", "", nil, labels),
		IterationFailures: prometheus.NewDesc("error_iteration", "", nil, labels),
		TagFailures:       prometheus.NewDesc("error_tags", "", nil, labels),
		PersistFailures:   prometheus.NewDesc("error_persist", "", nil, labels),
		PublishFailures:   prometheus.NewDesc("error_redis_publish", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Run
	ch <- self.StartTimestamp
	ch <- self.UpForSeconds

	// Watcher
	ch <- self.RemoteHeight
	ch <- self.LocalHeight
	ch <- self.BlocksBehind
	ch <- self.WindowSize
	ch <- self.LastSyncTimestamp
	ch <- self.AverageBlocksPerMinute
	ch <- self.Iterations
	ch <- self.BlocksSynced
	ch <- self.Reorgs
	ch <- self.DiscardedBlocks
	ch <- self.MissedIterations
	ch <- self.TipDeferrals
	ch <- self.TagsPending
	ch <- self.WindowResets

	// Redis publisher
	ch <- self.MessagesPublished

	// Errors
	ch <- self.FetchFailures
	ch <- self.IterationFailures
	ch <- self.TagFailures
	ch <- self.PersistFailures
	ch <- self.PublishFailures
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	self.monitor.fill()

	run := &self.monitor.Report.Run.State
	state := &self.monitor.Report.Watcher.State
	errors := &self.monitor.Report.Watcher.Errors
	publisher := self.monitor.Report.RedisPublisher

	// Run
	ch <- prometheus.MustNewConstMetric(self.StartTimestamp, prometheus.GaugeValue, float64(run.StartTimestamp.Load()))
	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(run.UpForSeconds.Load()))

	// Watcher
	ch <- prometheus.MustNewConstMetric(self.RemoteHeight, prometheus.GaugeValue, float64(state.RemoteHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.LocalHeight, prometheus.GaugeValue, float64(state.LocalHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.BlocksBehind, prometheus.GaugeValue, float64(state.BlocksBehind.Load()))
	ch <- prometheus.MustNewConstMetric(self.WindowSize, prometheus.GaugeValue, float64(state.WindowSize.Load()))
	ch <- prometheus.MustNewConstMetric(self.LastSyncTimestamp, prometheus.GaugeValue, float64(state.LastSyncTimestamp.Load()))
	ch <- prometheus.MustNewConstMetric(self.AverageBlocksPerMinute, prometheus.GaugeValue, state.AverageBlocksPerMinute.Load())
	ch <- prometheus.MustNewConstMetric(self.Iterations, prometheus.CounterValue, float64(state.Iterations.Load()))
	ch <- prometheus.MustNewConstMetric(self.BlocksSynced, prometheus.CounterValue, float64(state.BlocksSynced.Load()))
	ch <- prometheus.MustNewConstMetric(self.Reorgs, prometheus.CounterValue, float64(state.Reorgs.Load()))
	ch <- prometheus.MustNewConstMetric(self.DiscardedBlocks, prometheus.CounterValue, float64(state.DiscardedBlocks.Load()))
	ch <- prometheus.MustNewConstMetric(self.MissedIterations, prometheus.CounterValue, float64(state.MissedIterations.Load()))
	ch <- prometheus.MustNewConstMetric(self.TipDeferrals, prometheus.CounterValue, float64(state.TipDeferrals.Load()))
	ch <- prometheus.MustNewConstMetric(self.TagsPending, prometheus.GaugeValue, float64(state.TagsPending.Load()))
	ch <- prometheus.MustNewConstMetric(self.WindowResets, prometheus.CounterValue, float64(state.WindowResets.Load()))

	// Redis publisher
	ch <- prometheus.MustNewConstMetric(self.MessagesPublished, prometheus.CounterValue, float64(publisher.State.MessagesPublished.Load()))

	// Errors
	ch <- prometheus.MustNewConstMetric(self.FetchFailures, prometheus.CounterValue, float64(errors.FetchFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.IterationFailures, prometheus.CounterValue, float64(errors.IterationFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.TagFailures, prometheus.CounterValue, float64(errors.TagFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.PersistFailures, prometheus.CounterValue, float64(errors.PersistFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.PublishFailures, prometheus.CounterValue, float64(publisher.Errors.Publish.Load()))
}
