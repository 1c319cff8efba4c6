package report

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Watcher        *WatcherReport        `json:"watcher,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}
