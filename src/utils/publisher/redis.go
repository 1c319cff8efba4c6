package publisher

import (
	"context"
	"encoding"
	"fmt"
	"time"

	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/utils/monitoring/report"
	"github.com/warp-contracts/blockwatch/src/utils/task"

	"github.com/redis/go-redis/v9"
)

// Forwards messages to a Redis channel, in order
type RedisPublisher[In encoding.BinaryMarshaler] struct {
	*task.Task

	redisConfig config.Redis
	report      *report.RedisPublisherReport

	client      *redis.Client
	channelName string
	input       <-chan In
}

func NewRedisPublisher[In encoding.BinaryMarshaler](config *config.Config, name string) (self *RedisPublisher[In]) {
	self = new(RedisPublisher[In])

	self.redisConfig = config.Redis
	self.channelName = config.Redis.ChannelName
	self.report = &report.RedisPublisherReport{}

	self.Task = task.NewTask(config, name).
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect).
		// Single worker keeps the order of messages
		WithWorkerPool(1)

	return
}

func (self *RedisPublisher[In]) WithInputChannel(v <-chan In) *RedisPublisher[In] {
	self.input = v
	return self
}

func (self *RedisPublisher[In]) WithChannelName(v string) *RedisPublisher[In] {
	self.channelName = v
	return self
}

func (self *RedisPublisher[In]) WithReport(v *report.RedisPublisherReport) *RedisPublisher[In] {
	self.report = v
	return self
}

func (self *RedisPublisher[In]) disconnect() {
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

func (self *RedisPublisher[In]) connect() (err error) {
	self.client = redis.NewClient(&redis.Options{
		ClientName:      fmt.Sprintf("warp.cc/%s", self.Name),
		Addr:            fmt.Sprintf("%s:%d", self.redisConfig.Host, self.redisConfig.Port),
		Password:        self.redisConfig.Password,
		Username:        self.redisConfig.User,
		DB:              self.redisConfig.DB,
		MinIdleConns:    self.redisConfig.MinIdleConns,
		MaxIdleConns:    self.redisConfig.MaxIdleConns,
		ConnMaxIdleTime: self.redisConfig.ConnMaxIdleTime,
		PoolSize:        self.redisConfig.MaxOpenConns,
		ConnMaxLifetime: self.redisConfig.ConnMaxLifetime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = self.client.Ping(ctx).Err()
	if err != nil {
		self.Log.WithError(err).Error("Failed to ping Redis")
		return
	}

	return
}

func (self *RedisPublisher[In]) publish(payload In) {
	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.redisConfig.MaxElapsedTime).
		WithMaxInterval(self.redisConfig.MaxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			self.Log.WithError(err).Warn("Failed to publish message, retrying")
			self.report.Errors.Publish.Inc()
			return err
		}).
		Run(func() error {
			return self.client.Publish(self.Ctx, self.channelName, payload).Err()
		})
	if err != nil {
		self.Log.WithError(err).Error("Failed to publish message, giving up")
		self.report.Errors.PersistentFailure.Inc()
		return
	}

	self.report.State.MessagesPublished.Inc()
	self.report.State.LastSuccessfulMessageTimestamp.Store(time.Now().Unix())
}

// Input channel gets closed when the source stops
func (self *RedisPublisher[In]) run() (err error) {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case payload, ok := <-self.input:
			if !ok {
				return nil
			}
			self.SubmitToWorker(func() {
				self.publish(payload)
			})
		}
	}
}
