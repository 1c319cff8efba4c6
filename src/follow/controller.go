package follow

import (
	"github.com/warp-contracts/blockwatch/src/store"
	"github.com/warp-contracts/blockwatch/src/utils/arweave"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/utils/logger"
	monitor_watcher "github.com/warp-contracts/blockwatch/src/utils/monitoring/watcher"
	"github.com/warp-contracts/blockwatch/src/utils/publisher"
	"github.com/warp-contracts/blockwatch/src/utils/task"
	"github.com/warp-contracts/blockwatch/src/watch"
)

type Controller struct {
	*task.Task

	Watcher *watch.Watcher
	Monitor *monitor_watcher.Monitor
}

// Main class that orchestrates the watcher
// Setups following the chain, persisting the window, monitoring and publishing results
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "controller")

	db, err := store.ForWatcher(self.Ctx, config)
	if err != nil {
		return
	}

	self.Monitor = monitor_watcher.NewMonitor().
		WithMaxHistorySize(30)

	self.Watcher = watch.NewWatcher(config).
		WithSource(arweave.NewSource(&config.Arweave)).
		WithStore(db).
		WithObserver(watch.Observers{
			watch.NewLogObserver(logger.NewSublogger("events")),
			self.Monitor,
		})

	server := NewServer(config).
		WithMonitor(self.Monitor).
		WithWatcher(self.Watcher)

	self.Task = self.Task.
		WithSubtask(self.Monitor.Task).
		WithSubtask(server.Task).
		WithSubtask(self.Watcher.Task).
		WithSubtaskFunc(self.supervise).
		WithOnAfterStop(func() {
			err := db.Close()
			if err != nil {
				self.Log.WithError(err).Error("Failed to close the store")
			}
		})

	if config.Redis.Enabled {
		subscription := self.Watcher.Subscribe()
		redisPublisher := publisher.NewRedisPublisher[*watch.SyncResult](config, "redis-publisher").
			WithInputChannel(subscription.C()).
			WithReport(self.Monitor.Report.RedisPublisher)

		self.Task = self.Task.
			WithSubtask(redisPublisher.Task).
			// Publisher doesn't read after it stops
			WithOnAfterStop(subscription.Cancel)
	}

	return
}

// Stops everything once the watcher stops on its own
func (self *Controller) supervise() error {
	select {
	case <-self.StopChannel:
		return nil
	case <-self.Watcher.CtxRunning.Done():
	}

	err := self.Watcher.Err()
	if err != nil {
		self.Log.WithError(err).Error("Watcher failed")
	}

	go self.Stop()
	return nil
}

// Error that stopped the watcher, nil if it was stopped on request
func (self *Controller) Err() error {
	return self.Watcher.Err()
}
