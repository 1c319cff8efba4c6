package monitor_watcher

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/warp-contracts/blockwatch/src/utils/monitoring/report"
	"github.com/warp-contracts/blockwatch/src/utils/task"
	"github.com/warp-contracts/blockwatch/src/watch"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Watcher is considered healthy for this long after start
const gracePeriod = 5 * time.Minute

// Stores and computes monitor counters. Fed with watcher events.
type Monitor struct {
	*task.Task

	Report report.Report

	historySize int
	collector   *Collector

	// Local heights sampled every minute
	mtx          sync.Mutex
	BlockHeights *deque.Deque[int64]
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:            &report.RunReport{},
		Watcher:        &report.WatcherReport{},
		RedisPublisher: &report.RedisPublisherReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(nil, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorBlocks)

	return self.WithMaxHistorySize(10)
}

func (self *Monitor) WithMaxHistorySize(maxHistorySize int) *Monitor {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.historySize = maxHistorySize
	self.BlockHeights = deque.New[int64](self.historySize)
	return self
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure block processing speed
func (self *Monitor) monitorBlocks() (err error) {
	loaded := self.Report.Watcher.State.LocalHeight.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.BlockHeights.PushBack(loaded)
	if self.BlockHeights.Len() > self.historySize {
		self.BlockHeights.PopFront()
	}
	value := float64(self.BlockHeights.Back()-self.BlockHeights.Front()) / float64(self.BlockHeights.Len())

	self.Report.Watcher.State.AverageBlocksPerMinute.Store(round(value))
	return
}

// Implements watch.Observer
func (self *Monitor) OnEvent(e watch.Event) {
	state := &self.Report.Watcher.State
	errors := &self.Report.Watcher.Errors

	switch e.Kind {
	case watch.EventTip:
		state.Iterations.Inc()
		state.RemoteHeight.Store(e.Tip.Height)
		state.LocalHeight.Store(e.LocalHeight)
	case watch.EventTipDeferred:
		state.TipDeferrals.Inc()
	case watch.EventFetchFailed:
		errors.FetchFailures.Inc()
	case watch.EventReorg:
		state.Reorgs.Inc()
		state.DiscardedBlocks.Add(uint64(e.Count))
	case watch.EventMissed:
		state.MissedIterations.Inc()
	case watch.EventSynced:
		state.BlocksSynced.Add(uint64(e.Result.Synced))
		state.LocalHeight.Store(e.Result.Window.TopHeight())
		state.WindowSize.Store(int64(e.Result.Window.Len()))
		state.TagsPending.Store(int64(e.Result.TagsPending))
		state.LastSyncTimestamp.Store(time.Now().Unix())
	case watch.EventTagsFailed:
		errors.TagFailures.Inc()
	case watch.EventIterationFailed:
		errors.IterationFailures.Inc()
	case watch.EventWindowLoaded:
		state.LocalHeight.Store(e.Height)
		state.WindowSize.Store(int64(e.Count))
	case watch.EventWindowCleared:
		state.WindowResets.Inc()
		state.WindowSize.Store(0)
	case watch.EventPersistFailed:
		errors.PersistFailures.Inc()
	}
}

func (self *Monitor) IsOK() bool {
	now := time.Now().Unix()
	if now-self.Report.Run.State.StartTimestamp.Load() < int64(gracePeriod.Seconds()) {
		return true
	}

	// Watcher is operational long enough, blocks need to keep coming
	return self.Report.Watcher.State.AverageBlocksPerMinute.Load() > 0.1
}

func (self *Monitor) fill() {
	state := &self.Report.Watcher.State
	state.BlocksBehind.Store(state.RemoteHeight.Load() - state.LocalHeight.Load())
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.fill()
	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
