package arweave

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/warp-contracts/blockwatch/src/utils/build_info"
	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Client struct {
	client *resty.Client
	config *config.Arweave
	log    *logrus.Entry

	// State
	mtx      sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(config *config.Arweave) (self *Client) {
	self = new(Client)
	self.config = config
	self.log = logger.NewSublogger("arweave-client")

	self.limiters = make(map[string]*rate.Limiter)

	self.client =
		resty.New().
			SetBaseURL(self.config.NodeUrl).
			SetTimeout(self.config.RequestTimeout).
			SetHeader("User-Agent", "warp.cc/blockwatch/"+build_info.Version).
			SetLogger(NewLogger()).
			SetTransport(self.createTransport()).
			OnBeforeRequest(self.onRateLimit).
			OnAfterResponse(self.onStatusToError)

	return
}

func (self *Client) createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   self.config.DialerTimeout,
		KeepAlive: self.config.DialerKeepAlive,
	}

	return &http.Transport{
		// Some config options disable http2, try it anyway
		ForceAttemptHTTP2: true,

		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   self.config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,

		// arweave.net may sometimes stop responding on idle connections,
		// resulting in error: context deadline exceeded (Client.Timeout exceeded while awaiting headers)
		IdleConnTimeout:     self.config.IdleConnTimeout,
		MaxIdleConnsPerHost: max(1, self.config.LimiterBurstSize),
	}
}

// Non-success status code turns into an error
func (self *Client) onStatusToError(c *resty.Client, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		// Remote host receives too much requests, adjust rate limit
		self.decrementLimit(self.hostOf(resp.Request.URL, c))
	default:
		if resp.StatusCode() > 399 && resp.StatusCode() < 500 {
			self.log.WithField("status", resp.StatusCode()).
				WithField("resp", string(resp.Body())).
				WithField("url", resp.Request.URL).
				Debug("Bad request")
		}
	}
	return fmt.Errorf("%w: unexpected status: %s", ErrBadResponse, resp.Status())
}

func (self *Client) decrementLimit(host string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	limiter, ok := self.limiters[host]
	if !ok {
		return
	}

	self.log.WithField("host", host).WithField("limit", limiter.Limit()).Debug("Decreasing limit")

	limiter.SetLimit(limiter.Limit() * 0.9)
}

func (self *Client) getLimiter(host string) (limiter *rate.Limiter) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	limiter, ok := self.limiters[host]
	if !ok {
		limit := rate.Inf
		if self.config.LimiterRequestsPerSecond > 0 {
			limit = rate.Limit(self.config.LimiterRequestsPerSecond)
		}
		limiter = rate.NewLimiter(limit, max(1, self.config.LimiterBurstSize))
		self.limiters[host] = limiter
	}
	return
}

// Relative URLs point to the base URL
func (self *Client) hostOf(reqUrl string, c *resty.Client) string {
	u, err := url.Parse(reqUrl)
	if err == nil && u.Host != "" {
		return u.Host
	}
	u, err = url.Parse(c.BaseURL)
	if err == nil {
		return u.Host
	}
	return c.BaseURL
}

func (self *Client) onRateLimit(c *resty.Client, req *resty.Request) (err error) {
	host := self.hostOf(req.URL, c)

	// Blocks till the request is possible
	// Or ctx gets canceled
	err = self.getLimiter(host).Wait(req.Context())
	if err != nil {
		self.log.WithField("host", host).WithError(err).Debug("Rate limiting failed")
	}
	return
}

// https://docs.arweave.org/developers/server/http-api#network-info
func (self *Client) GetNetworkInfo(ctx context.Context) (out *NetworkInfo, err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&NetworkInfo{}).
		Get("/info")
	if err != nil {
		return
	}

	out, ok := resp.Result().(*NetworkInfo)
	if !ok {
		err = ErrFailedToParse
		return
	}

	return
}

// https://docs.arweave.org/developers/server/http-api#get-block-by-height
func (self *Client) GetBlockByHeight(ctx context.Context, height int64) (out *Block, err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&Block{}).
		SetPathParam("height", strconv.FormatInt(height, 10)).
		Get("/block/height/{height}")
	if err != nil {
		return
	}

	out, ok := resp.Result().(*Block)
	if !ok {
		err = ErrFailedToParse
		return
	}

	return
}

// https://docs.arweave.org/developers/server/http-api#get-transaction-field
func (self *Client) GetTransactionTags(ctx context.Context, id string) (out []Tag, err error) {
	resp, err := self.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult([]Tag{}).
		SetPathParam("id", id).
		Get("/tx/{id}/tags")
	if err != nil {
		return
	}

	tags, ok := resp.Result().(*[]Tag)
	if !ok {
		err = ErrFailedToParse
		return
	}

	return *tags, nil
}
