package monitor_watcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/watch"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

type MonitorTestSuite struct {
	suite.Suite
	monitor *Monitor
}

func (s *MonitorTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.monitor = NewMonitor()
}

func (s *MonitorTestSuite) window(top int64, size int) chain.Window {
	var blocks []chain.SyncedBlock
	for h := top - int64(size) + 1; h <= top; h++ {
		blocks = append(blocks, chain.NewSyncedBlock(chain.BlockHeader{
			Height:       h,
			Hash:         blockHash(h),
			PreviousHash: blockHash(h - 1),
		}))
	}
	window, err := chain.NewWindow(size, blocks...)
	require.NoError(s.T(), err)
	return window
}

func blockHash(h int64) string {
	return fmt.Sprintf("hash-%d", h)
}

func (s *MonitorTestSuite) TestEvents() {
	s.monitor.OnEvent(watch.Event{Kind: watch.EventTip, Tip: chain.Tip{Height: 110}, LocalHeight: 100})
	s.monitor.OnEvent(watch.Event{Kind: watch.EventFetchFailed, Err: errors.New("timeout")})
	s.monitor.OnEvent(watch.Event{Kind: watch.EventReorg, Count: 2})
	s.monitor.OnEvent(watch.Event{Kind: watch.EventMissed})
	s.monitor.OnEvent(watch.Event{Kind: watch.EventSynced, Result: &watch.SyncResult{
		Synced:      5,
		Window:      s.window(105, 5),
		TagsPending: 3,
	}})
	s.monitor.OnEvent(watch.Event{Kind: watch.EventPersistFailed, Err: errors.New("disk full")})

	state := &s.monitor.Report.Watcher.State
	require.Equal(s.T(), uint64(1), state.Iterations.Load())
	require.Equal(s.T(), int64(110), state.RemoteHeight.Load())
	require.Equal(s.T(), int64(105), state.LocalHeight.Load())
	require.Equal(s.T(), int64(5), state.WindowSize.Load())
	require.Equal(s.T(), uint64(5), state.BlocksSynced.Load())
	require.Equal(s.T(), uint64(1), state.Reorgs.Load())
	require.Equal(s.T(), uint64(2), state.DiscardedBlocks.Load())
	require.Equal(s.T(), uint64(1), state.MissedIterations.Load())
	require.Equal(s.T(), int64(3), state.TagsPending.Load())
	require.Equal(s.T(), uint64(1), s.monitor.Report.Watcher.Errors.FetchFailures.Load())
	require.Equal(s.T(), uint64(1), s.monitor.Report.Watcher.Errors.PersistFailures.Load())
}

func (s *MonitorTestSuite) TestAverageBlocks() {
	s.monitor.WithMaxHistorySize(3)
	for _, h := range []int64{100, 101, 103, 106} {
		s.monitor.Report.Watcher.State.LocalHeight.Store(h)
		require.NoError(s.T(), s.monitor.monitorBlocks())
	}

	// 101, 103, 106 left in history
	require.Equal(s.T(), 3, s.monitor.BlockHeights.Len())
	require.Equal(s.T(), 1.67, s.monitor.Report.Watcher.State.AverageBlocksPerMinute.Load())
}

func (s *MonitorTestSuite) TestHealth() {
	router := gin.New()
	router.GET("/health", s.monitor.OnGetHealth)

	// Grace period after start
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(s.T(), http.StatusOK, rec.Code)

	// Stalled
	s.monitor.Report.Run.State.StartTimestamp.Store(time.Now().Add(-time.Hour).Unix())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(s.T(), http.StatusServiceUnavailable, rec.Code)

	// Blocks are coming
	s.monitor.Report.Watcher.State.AverageBlocksPerMinute.Store(0.5)
	require.True(s.T(), s.monitor.IsOK())
}

func (s *MonitorTestSuite) TestState() {
	s.monitor.OnEvent(watch.Event{Kind: watch.EventTip, Tip: chain.Tip{Height: 110}, LocalHeight: 100})

	router := gin.New()
	router.GET("/state", s.monitor.OnGetState)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(s.T(), http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	state := body["watcher"].(map[string]any)["state"].(map[string]any)
	require.Equal(s.T(), float64(10), state["blocks_behind"])
	require.Equal(s.T(), float64(110), state["remote_height"])
}

func (s *MonitorTestSuite) TestCollector() {
	count := testutil.CollectAndCount(s.monitor.GetPrometheusCollector())
	require.Equal(s.T(), 22, count)
}
