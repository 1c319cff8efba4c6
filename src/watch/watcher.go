package watch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/utils/task"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"
)

type State int32

const (
	StateStarting State = iota
	StateRunning
	StateRetrying
	StateStopped
)

func (self State) String() string {
	switch self {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	default:
		return "stopped"
	}
}

// Periodically syncs the window with the remote chain and broadcasts results.
// First result is always broadcasted, later ones only if new blocks came in.
type Watcher struct {
	*task.Task

	config      *config.Watcher
	syncer      *Syncer
	store       Store
	observer    Observer
	broadcaster *Broadcaster[*SyncResult]

	state   *atomic.Int32
	emitted bool

	mtx    sync.RWMutex
	window chain.Window
	err    error
}

func NewWatcher(config *config.Config) (self *Watcher) {
	self = new(Watcher)
	self.config = &config.Watcher
	self.observer = nopObserver{}
	self.syncer = NewSyncer(self.config)
	self.broadcaster = NewBroadcaster[*SyncResult]()
	self.state = atomic.NewInt32(int32(StateStarting))
	self.window = chain.EmptyWindow(self.config.BlocksToSync)

	self.Task = task.NewTask(config, "watcher").
		WithSubtaskFunc(self.run).
		// Persistence is serialized, at most one write at a time
		WithWorkerPool(1).
		WithOnAfterStop(func() {
			self.state.Store(int32(StateStopped))
			self.broadcaster.Close()
		})

	return
}

func (self *Watcher) WithSource(source Source) *Watcher {
	self.syncer.WithSource(source)
	return self
}

// Nil store disables persistence
func (self *Watcher) WithStore(store Store) *Watcher {
	self.store = store
	return self
}

func (self *Watcher) WithObserver(observer Observer) *Watcher {
	if observer == nil {
		observer = nopObserver{}
	}
	self.observer = observer
	self.syncer.WithObserver(observer)
	return self
}

// Stream of results. Subscriber first gets the last emitted result, if any.
// Channel is closed when the watcher stops.
func (self *Watcher) Subscribe() *Subscription[*SyncResult] {
	return self.broadcaster.Subscribe()
}

func (self *Watcher) State() State {
	return State(self.state.Load())
}

// Current window
func (self *Watcher) Window() chain.Window {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return self.window
}

// Error that stopped the watcher, nil if it was stopped on request
func (self *Watcher) Err() error {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return self.err
}

func (self *Watcher) setWindow(window chain.Window) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.window = window
}

func (self *Watcher) fail(err error) error {
	self.mtx.Lock()
	self.err = err
	self.mtx.Unlock()

	go self.Stop()
	return err
}

func (self *Watcher) run() (err error) {
	if !self.Sleep(self.config.StartupDelay) {
		return nil
	}

	window, err := self.load()
	if err != nil {
		return self.fail(err)
	}
	self.setWindow(window)
	self.state.Store(int32(StateRunning))

	for {
		var result *SyncResult
		result, err = self.iterate(window)
		if self.IsStopping.Load() {
			// Results of an iteration that finished after stop are ignored
			return nil
		}

		if err != nil {
			if !IsInvariantViolation(err) || !self.discardInvalid() {
				return self.fail(err)
			}
			window = self.reset(err)
			if !self.Sleep(self.pollInterval()) {
				return nil
			}
			continue
		}

		err = result.Window.Validate()
		if err != nil {
			if !self.discardInvalid() {
				return self.fail(err)
			}
			window = self.reset(err)
			if !self.Sleep(self.pollInterval()) {
				return nil
			}
			continue
		}

		window = result.Window
		self.setWindow(window)

		if !self.emitted || result.Synced > 0 {
			self.emitted = true
			self.broadcaster.Publish(result)
		}

		if result.Synced > 0 {
			self.persist(window)
		}

		if !self.Sleep(self.pollInterval()) {
			return nil
		}
	}
}

// One iteration, transient errors are retried with backoff until the watcher stops
func (self *Watcher) iterate(window chain.Window) (result *SyncResult, err error) {
	err = task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(0).
		WithInitialInterval(self.config.BackoffInitialInterval).
		WithMaxInterval(self.config.BackoffMaxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			if IsInvariantViolation(err) || self.IsStopping.Load() {
				return backoff.Permanent(err)
			}
			self.state.Store(int32(StateRetrying))
			self.observer.OnEvent(Event{Kind: EventIterationFailed, LocalHeight: window.TopHeight(), Err: err})
			return err
		}).
		Run(func() (err error) {
			result, err = self.syncer.RunOneIteration(self.Ctx, window)
			return
		})
	if err == nil {
		self.state.Store(int32(StateRunning))
	}
	return
}

// Broken windows are thrown away only in production, otherwise they stop the watcher
func (self *Watcher) discardInvalid() bool {
	return !self.Config.IsDevelopment && self.config.DiscardInvalidWindow
}

// Uniformly random in [MinPollTime, MaxPollTime]
func (self *Watcher) pollInterval() time.Duration {
	spread := self.config.MaxPollTime - self.config.MinPollTime
	if spread <= 0 {
		return self.config.MinPollTime
	}
	return self.config.MinPollTime + time.Duration(rand.Int63n(int64(spread)+1))
}

// Window to start with
func (self *Watcher) load() (window chain.Window, err error) {
	window = chain.EmptyWindow(self.config.BlocksToSync)
	if self.store == nil {
		return
	}

	blocks, err := self.store.LoadAll(self.Ctx)
	if err != nil {
		// Start from scratch
		self.observer.OnEvent(Event{Kind: EventWindowCleared, Err: err})
		return window, nil
	}

	if len(blocks) == 0 {
		return
	}

	if len(blocks) < self.config.BlocksToSync {
		// Too old to be useful, the gap would be skipped anyway
		self.clearStore()
		self.observer.OnEvent(Event{Kind: EventWindowCleared, Count: len(blocks)})
		return
	}

	window, err = chain.NewWindow(self.config.BlocksToSync, blocks...)
	if err != nil {
		if !self.discardInvalid() {
			return
		}
		self.clearStore()
		self.observer.OnEvent(Event{Kind: EventWindowCleared, Err: err})
		return chain.EmptyWindow(self.config.BlocksToSync), nil
	}

	self.observer.OnEvent(Event{Kind: EventWindowLoaded, Count: window.Len(), Height: window.TopHeight()})
	return
}

// Starts over with an empty window
func (self *Watcher) reset(cause error) chain.Window {
	window := chain.EmptyWindow(self.config.BlocksToSync)
	self.setWindow(window)
	self.observer.OnEvent(Event{Kind: EventWindowCleared, Err: cause})

	if self.store != nil {
		self.SubmitToWorker(self.clearStore)
	}
	return window
}

func (self *Watcher) clearStore() {
	err := self.store.Clear(self.CtxRunning)
	if err != nil {
		self.observer.OnEvent(Event{Kind: EventPersistFailed, Err: err})
	}
}

// Saves the window in the background. Failures are only reported.
func (self *Watcher) persist(window chain.Window) {
	if self.store == nil {
		return
	}

	blocks := window.Blocks()
	bottom, _ := window.Bottom()

	self.SubmitToWorker(func() {
		ctx := self.CtxRunning
		err := self.store.SaveMany(ctx, blocks)
		if err == nil {
			err = self.store.TrimBelow(ctx, bottom.Height())
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			self.observer.OnEvent(Event{Kind: EventPersistFailed, Err: err})
		}
	})
}
