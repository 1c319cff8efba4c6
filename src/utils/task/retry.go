package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Implement operation retrying
type Retry struct {
	ctx             context.Context
	maxElapsedTime  time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
	maxAttempts     uint64
	onError         func(error, bool) error
	onRetry         func(error, time.Duration)
}

func NewRetry() *Retry {
	return &Retry{
		ctx: context.Background(),
	}
}

// 0 means no limit
func (self *Retry) WithMaxElapsedTime(maxElapsedTime time.Duration) *Retry {
	self.maxElapsedTime = maxElapsedTime
	return self
}

func (self *Retry) WithInitialInterval(initialInterval time.Duration) *Retry {
	self.initialInterval = initialInterval
	return self
}

func (self *Retry) WithMaxInterval(maxInterval time.Duration) *Retry {
	self.maxInterval = maxInterval
	return self
}

// Number of tries, including the first one. 0 means no limit
func (self *Retry) WithMaxAttempts(maxAttempts uint64) *Retry {
	self.maxAttempts = maxAttempts
	return self
}

func (self *Retry) WithContext(ctx context.Context) *Retry {
	self.ctx = ctx
	return self
}

// Called after every failure. Returned error replaces the original one,
// wrap it with backoff.Permanent to stop retrying
func (self *Retry) WithOnError(v func(err error, isDurationAcceptable bool) error) *Retry {
	self.onError = v
	return self
}

// Called before sleeping between tries
func (self *Retry) WithOnRetry(v func(err error, next time.Duration)) *Retry {
	self.onRetry = v
	return self
}

func (self *Retry) Run(f func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = self.maxElapsedTime
	if self.initialInterval > 0 {
		b.InitialInterval = self.initialInterval
	}
	if self.maxInterval > 0 {
		b.MaxInterval = self.maxInterval
	}

	var policy backoff.BackOff = b
	if self.maxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, self.maxAttempts-1)
	}
	policy = backoff.WithContext(policy, self.ctx)

	start := time.Now()
	operation := func() error {
		err := f()
		if err == nil || self.onError == nil {
			return err
		}
		isDurationAcceptable := self.maxElapsedTime == 0 || time.Since(start) < self.maxElapsedTime
		return self.onError(err, isDurationAcceptable)
	}

	return backoff.RetryNotify(operation, policy, func(err error, next time.Duration) {
		if self.onRetry != nil {
			self.onRetry(err, next)
		}
	})
}
