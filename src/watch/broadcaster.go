package watch

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/xid"
)

// Fans values out to any number of subscribers.
// New subscribers first get the last published value.
// Every subscriber has its own unbounded queue, so a slow one never blocks the publisher.
type Broadcaster[T any] struct {
	mtx         sync.Mutex
	last        T
	hasLast     bool
	closed      bool
	subscribers map[xid.ID]*Subscription[T]

	// Closed by Close. Afterwards each queued value waits at most drainTimeout for a reader.
	closing      chan struct{}
	drainTimeout time.Duration
}

type Subscription[T any] struct {
	Id xid.ID

	parent *Broadcaster[T]
	output chan T
	done   chan struct{}
	once   sync.Once

	mtx    sync.Mutex
	cond   *sync.Cond
	queue  deque.Deque[T]
	closed bool
}

func NewBroadcaster[T any]() (self *Broadcaster[T]) {
	self = new(Broadcaster[T])
	self.subscribers = make(map[xid.ID]*Subscription[T])
	self.closing = make(chan struct{})
	self.drainTimeout = 5 * time.Second
	return
}

// How long a value queued before Close waits for a reader. Set before subscribing.
func (self *Broadcaster[T]) WithDrainTimeout(v time.Duration) *Broadcaster[T] {
	self.drainTimeout = v
	return self
}

func (self *Broadcaster[T]) Subscribe() (out *Subscription[T]) {
	out = new(Subscription[T])
	out.Id = xid.New()
	out.parent = self
	out.output = make(chan T)
	out.done = make(chan struct{})
	out.cond = sync.NewCond(&out.mtx)

	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.hasLast {
		out.queue.PushBack(self.last)
	}

	if self.closed {
		// Replay what's there and finish
		out.closed = true
	} else {
		self.subscribers[out.Id] = out
	}

	go out.pump()
	return
}

// Passes the value to all subscribers. No-op after Close
func (self *Broadcaster[T]) Publish(v T) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.closed {
		return
	}

	self.last = v
	self.hasLast = true

	for _, sub := range self.subscribers {
		sub.push(v)
	}
}

// Subscribers get remaining queued values, then their channels get closed.
// Values nobody reads within the drain timeout are dropped.
func (self *Broadcaster[T]) Close() {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.closed {
		return
	}
	self.closed = true
	close(self.closing)

	for id, sub := range self.subscribers {
		sub.finish(false)
		delete(self.subscribers, id)
	}
}

func (self *Broadcaster[T]) Len() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.subscribers)
}

func (self *Broadcaster[T]) remove(id xid.ID) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	delete(self.subscribers, id)
}

// Values in the order they were published
func (self *Subscription[T]) C() <-chan T {
	return self.output
}

// Stops receiving. Values not yet read are dropped and the channel gets closed
func (self *Subscription[T]) Cancel() {
	self.parent.remove(self.Id)
	self.finish(true)
	self.once.Do(func() {
		close(self.done)
	})
}

func (self *Subscription[T]) push(v T) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.closed {
		return
	}
	self.queue.PushBack(v)
	self.cond.Signal()
}

func (self *Subscription[T]) finish(drop bool) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.closed = true
	if drop {
		self.queue.Clear()
	}
	self.cond.Broadcast()
}

// Moves values from the queue to the output channel
func (self *Subscription[T]) pump() {
	defer close(self.output)

	for {
		self.mtx.Lock()
		for self.queue.Len() == 0 && !self.closed {
			self.cond.Wait()
		}
		if self.queue.Len() == 0 {
			// Closed and drained
			self.mtx.Unlock()
			return
		}
		v := self.queue.PopFront()
		self.mtx.Unlock()

		select {
		case self.output <- v:
		case <-self.done:
			return
		case <-self.parent.closing:
			if !self.drain(v) {
				return
			}
		}
	}
}

// Delivery after Close, gives up if there's no reader
func (self *Subscription[T]) drain(v T) bool {
	timer := time.NewTimer(self.parent.drainTimeout)
	defer timer.Stop()

	select {
	case self.output <- v:
		return true
	case <-self.done:
		return false
	case <-timer.C:
		return false
	}
}
