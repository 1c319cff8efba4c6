package retriever

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp-contracts/blockwatch/src/utils/logger"
	"github.com/warp-contracts/blockwatch/src/utils/task"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetches a set of keyed items from a remote source.
// - at most concurrency fetches are in flight, keys are processed in batches of that size
// - after each batch there's a pause, so the remote source isn't overwhelmed
// - every fetch is retried with exponential backoff, up to maxAttempts times
type Retriever[K comparable, V any] struct {
	log  *logrus.Entry
	name string

	concurrency     int
	batchDelay      time.Duration
	maxAttempts     uint64
	initialInterval time.Duration
	maxInterval     time.Duration

	fetch   func(context.Context, K) (V, error)
	onError func(K, error)
}

func New[K comparable, V any](name string) (self *Retriever[K, V]) {
	self = new(Retriever[K, V])
	self.name = name
	self.log = logger.NewSublogger("retriever." + name)
	self.concurrency = 1
	self.maxAttempts = 1
	return
}

func (self *Retriever[K, V]) WithConcurrency(v int) *Retriever[K, V] {
	if v < 1 {
		v = 1
	}
	self.concurrency = v
	return self
}

func (self *Retriever[K, V]) WithBatchDelay(v time.Duration) *Retriever[K, V] {
	self.batchDelay = v
	return self
}

func (self *Retriever[K, V]) WithMaxAttempts(v uint64) *Retriever[K, V] {
	if v < 1 {
		v = 1
	}
	self.maxAttempts = v
	return self
}

func (self *Retriever[K, V]) WithBackoff(initialInterval, maxInterval time.Duration) *Retriever[K, V] {
	self.initialInterval = initialInterval
	self.maxInterval = maxInterval
	return self
}

func (self *Retriever[K, V]) WithFetch(f func(context.Context, K) (V, error)) *Retriever[K, V] {
	self.fetch = f
	return self
}

// Called after every failed try
func (self *Retriever[K, V]) WithOnError(f func(K, error)) *Retriever[K, V] {
	self.onError = f
	return self
}

// Fetches one key, with retries
func (self *Retriever[K, V]) FetchOne(ctx context.Context, key K) (out V, err error) {
	err = task.NewRetry().
		WithContext(ctx).
		WithMaxAttempts(self.maxAttempts).
		WithInitialInterval(self.initialInterval).
		WithMaxInterval(self.maxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			if self.onError != nil {
				self.onError(key, err)
			}
			self.log.WithError(err).WithField("key", key).Debug("Fetch failed")
			return err
		}).
		Run(func() (err error) {
			out, err = self.fetch(ctx, key)
			return
		})
	if err == nil {
		return
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
		return
	}

	err = &FetchExhaustedError{
		Name:     self.name,
		Key:      key,
		Attempts: self.maxAttempts,
		Err:      err,
	}
	return
}

// Splits keys into batches and runs f for each batch, pausing in between
func (self *Retriever[K, V]) forEachBatch(ctx context.Context, keys []K, f func(offset int, batch []K) error) (err error) {
	for offset := 0; offset < len(keys); offset += self.concurrency {
		if offset > 0 && self.batchDelay > 0 {
			timer := time.NewTimer(self.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err = ctx.Err(); err != nil {
			return
		}

		end := offset + self.concurrency
		if end > len(keys) {
			end = len(keys)
		}

		err = f(offset, keys[offset:end])
		if err != nil {
			return
		}
	}
	return nil
}

// Returns values for all keys, in the same order. Fails if any key fails.
func (self *Retriever[K, V]) FetchAll(ctx context.Context, keys []K) (out []V, err error) {
	out = make([]V, len(keys))

	err = self.forEachBatch(ctx, keys, func(offset int, batch []K) error {
		group, groupCtx := errgroup.WithContext(ctx)
		for i, key := range batch {
			idx := offset + i
			key := key
			group.Go(func() (err error) {
				out[idx], err = self.FetchOne(groupCtx, key)
				return
			})
		}
		return group.Wait()
	})
	if err != nil {
		// Cancellation of the parent context wins over failures it caused
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrFetchExhausted) {
			err = ctxErr
		}
		return nil, err
	}

	return
}

// Fetches all keys, failures of single keys are collected instead of aborting.
// Error is returned only if ctx got cancelled.
func (self *Retriever[K, V]) FetchEach(ctx context.Context, keys []K) (values map[K]V, failed map[K]error, err error) {
	values = make(map[K]V, len(keys))
	failed = make(map[K]error)

	var mtx sync.Mutex
	err = self.forEachBatch(ctx, keys, func(offset int, batch []K) error {
		var wg sync.WaitGroup
		wg.Add(len(batch))
		for _, key := range batch {
			key := key
			go func() {
				defer wg.Done()
				v, err := self.FetchOne(ctx, key)

				mtx.Lock()
				defer mtx.Unlock()
				if err != nil {
					failed[key] = err
					return
				}
				values[key] = v
			}()
		}
		wg.Wait()
		return ctx.Err()
	})

	return
}
