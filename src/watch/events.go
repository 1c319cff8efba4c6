package watch

import (
	"github.com/warp-contracts/blockwatch/src/chain"

	"github.com/sirupsen/logrus"
)

type EventKind uint8

const (
	// Remote tip was fetched
	EventTip EventKind = iota

	// Nothing to do in this iteration
	EventNoop

	// Tip changed at the same height, resolution postponed
	EventTipDeferred

	// One try of a fetch failed, it may be retried
	EventFetchFailed

	// Fork found, window tail got replaced
	EventReorg

	// Walk back stopped at the horizon without finding the common ancestor
	EventHorizonReached

	// Gap was bigger than the window
	EventMissed

	// Iteration finished with new blocks
	EventSynced

	// Tags of a transaction couldn't be downloaded
	EventTagsFailed

	// Iteration failed, it will be retried
	EventIterationFailed

	// Window was loaded from the store
	EventWindowLoaded

	// Window was reset to empty
	EventWindowCleared

	// Window couldn't be saved
	EventPersistFailed
)

func (self EventKind) String() string {
	switch self {
	case EventTip:
		return "tip"
	case EventNoop:
		return "noop"
	case EventTipDeferred:
		return "tip-deferred"
	case EventFetchFailed:
		return "fetch-failed"
	case EventReorg:
		return "reorg"
	case EventHorizonReached:
		return "horizon-reached"
	case EventMissed:
		return "missed"
	case EventSynced:
		return "synced"
	case EventTagsFailed:
		return "tags-failed"
	case EventIterationFailed:
		return "iteration-failed"
	case EventWindowLoaded:
		return "window-loaded"
	case EventWindowCleared:
		return "window-cleared"
	case EventPersistFailed:
		return "persist-failed"
	default:
		return "unknown"
	}
}

// Something noteworthy happened while following the chain.
// Only fields relevant to the kind are set.
type Event struct {
	Kind        EventKind
	Tip         chain.Tip
	LocalHeight int64
	Height      int64
	Key         any
	Count       int
	Result      *SyncResult
	Err         error
}

type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (self ObserverFunc) OnEvent(e Event) {
	self(e)
}

// Passes events to all observers, in order
type Observers []Observer

func (self Observers) OnEvent(e Event) {
	for _, o := range self {
		o.OnEvent(e)
	}
}

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}

type logObserver struct {
	log *logrus.Entry
}

// Writes events to the log
func NewLogObserver(log *logrus.Entry) Observer {
	return &logObserver{log: log}
}

func (self *logObserver) OnEvent(e Event) {
	log := self.log.WithField("event", e.Kind.String())
	switch e.Kind {
	case EventTip:
		log.WithField("remote_height", e.Tip.Height).
			WithField("remote_hash", e.Tip.Hash).
			WithField("local_height", e.LocalHeight).
			Trace("Got remote tip")
	case EventNoop:
		log.WithField("local_height", e.LocalHeight).Debug("Nothing to sync")
	case EventTipDeferred:
		log.WithField("height", e.Tip.Height).
			WithField("remote_hash", e.Tip.Hash).
			WithField("deferrals", e.Count).
			Info("Tip changed at the same height, waiting")
	case EventFetchFailed:
		log.WithError(e.Err).WithField("key", e.Key).Debug("Fetch failed")
	case EventReorg:
		log.WithField("height", e.Height).WithField("discarded", e.Count).Warn("Fork detected, window repaired")
	case EventHorizonReached:
		log.WithField("height", e.Height).Warn("Common ancestor not found within the window")
	case EventMissed:
		log.WithField("local_height", e.LocalHeight).
			WithField("remote_height", e.Tip.Height).
			Warn("Gap bigger than the window, blocks skipped")
	case EventSynced:
		log.WithField("synced", e.Result.Synced).
			WithField("height", e.Result.Window.TopHeight()).
			WithField("tags_pending", e.Result.TagsPending).
			Info("Synced")
	case EventTagsFailed:
		log.WithError(e.Err).WithField("tx_id", e.Key).Warn("Failed to get tags")
	case EventIterationFailed:
		log.WithError(e.Err).Warn("Iteration failed")
	case EventWindowLoaded:
		log.WithField("blocks", e.Count).WithField("height", e.Height).Info("Window loaded")
	case EventWindowCleared:
		log.WithError(e.Err).Warn("Window cleared")
	case EventPersistFailed:
		log.WithError(e.Err).Error("Failed to persist window")
	}
}
