package follow

import (
	"context"
	"net/http"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	monitor_watcher "github.com/warp-contracts/blockwatch/src/utils/monitoring/watcher"
	"github.com/warp-contracts/blockwatch/src/utils/task"
	"github.com/warp-contracts/blockwatch/src/watch"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type windowGetter interface {
	Window() chain.Window
	State() watch.State
}

// Rest API server, serves monitor counters and the current window
type Server struct {
	*task.Task

	httpServer *http.Server
	Router     *gin.Engine
	registry   *prometheus.Registry

	monitor *monitor_watcher.Monitor
	watcher windowGetter
}

func NewServer(config *config.Config) (self *Server) {
	self = new(Server)

	self.Task = task.NewTask(config, "server").
		WithOnBeforeStart(self.setup).
		WithSubtaskFunc(self.run).
		WithOnStop(self.stop)

	if !config.IsDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	self.Router = gin.New()
	self.Router.Use(gin.Recovery())
	self.registry = prometheus.NewRegistry()

	self.httpServer = &http.Server{
		Addr:    self.Config.RESTListenAddress,
		Handler: self.Router,
	}

	return
}

func (self *Server) WithMonitor(monitor *monitor_watcher.Monitor) *Server {
	self.monitor = monitor
	return self
}

func (self *Server) WithWatcher(watcher windowGetter) *Server {
	self.watcher = watcher
	return self
}

func (self *Server) setup() (err error) {
	err = self.registry.Register(self.monitor.GetPrometheusCollector())
	if err != nil {
		return
	}

	if self.Config.IsDevelopment {
		pprof.Register(self.Router)
	}

	self.Router.GET("metrics", gin.WrapH(promhttp.HandlerFor(self.registry, promhttp.HandlerOpts{})))

	v1 := self.Router.Group("v1")
	{
		v1.GET("health", self.monitor.OnGetHealth)
		v1.GET("state", self.monitor.OnGetState)
		v1.GET("window", self.onGetWindow)
	}
	return
}

func (self *Server) onGetWindow(c *gin.Context) {
	window := self.watcher.Window()
	c.JSON(http.StatusOK, gin.H{
		"state":    self.watcher.State().String(),
		"size":     window.Len(),
		"max_size": window.MaxSize(),
		"blocks":   window,
	})
}

func (self *Server) run() (err error) {
	err = self.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		self.Log.WithError(err).Error("Failed to start REST server")
		return
	}
	return nil
}

func (self *Server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.httpServer.Shutdown(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to gracefully shutdown REST server")
		return
	}
}
