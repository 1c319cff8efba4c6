package arweave

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/utils/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

type ClientTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	server *httptest.Server
	source *Source

	tagRequests atomic.Int32
}

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func (s *ClientTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"network": "arweave.N.1", "height": 1200, "current": "hash-1200"})
	})
	router.GET("/block/height/:height", func(c *gin.Context) {
		switch c.Param("height") {
		case "1200":
			c.JSON(http.StatusOK, gin.H{
				"indep_hash":     "hash-1200",
				"previous_block": "hash-1199",
				"height":         1200,
				"timestamp":      1680000000,
				"txs":            []string{"tx-1", "tx-2"},
			})
		case "1201":
			// Node lagging behind returns its own top
			c.JSON(http.StatusOK, gin.H{"indep_hash": "hash-1200", "previous_block": "hash-1199", "height": 1200})
		case "1202":
			c.JSON(http.StatusOK, gin.H{"height": 1202})
		case "1203":
			c.Status(http.StatusTooManyRequests)
		default:
			c.Status(http.StatusNotFound)
		}
	})
	router.GET("/tx/:id/tags", func(c *gin.Context) {
		s.tagRequests.Add(1)
		switch c.Param("id") {
		case "tx-1":
			c.JSON(http.StatusOK, []gin.H{
				{"name": encode("App-Name"), "value": encode("SmartWeaveAction")},
				{"name": encode("Contract"), "value": encode("abc")},
			})
		case "tx-2":
			c.JSON(http.StatusOK, []gin.H{})
		case "tx-bad":
			c.JSON(http.StatusOK, []gin.H{{"name": "!!!", "value": encode("x")}})
		default:
			c.Status(http.StatusNotFound)
		}
	})
	s.server = httptest.NewServer(router)

	cfg := config.Default().Arweave
	cfg.NodeUrl = s.server.URL
	cfg.LimiterRequestsPerSecond = 1000
	s.source = NewSource(&cfg)
}

func (s *ClientTestSuite) TearDownSuite() {
	s.server.Close()
	s.cancel()
}

func (s *ClientTestSuite) TestGetTip() {
	tip, err := s.source.GetTip(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), chain.Tip{Height: 1200, Hash: "hash-1200"}, tip)
}

func (s *ClientTestSuite) TestGetHeader() {
	header, err := s.source.GetHeader(s.ctx, 1200)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(1200), header.Height)
	require.Equal(s.T(), "hash-1200", header.Hash)
	require.Equal(s.T(), "hash-1199", header.PreviousHash)
	require.Equal(s.T(), []string{"tx-1", "tx-2"}, header.TransactionIds)
}

func (s *ClientTestSuite) TestGetHeaderHeightMismatch() {
	_, err := s.source.GetHeader(s.ctx, 1201)
	require.ErrorIs(s.T(), err, ErrHeightMismatch)
}

func (s *ClientTestSuite) TestGetHeaderMalformed() {
	_, err := s.source.GetHeader(s.ctx, 1202)
	require.ErrorIs(s.T(), err, ErrMalformedHeader)
}

func (s *ClientTestSuite) TestGetHeaderNotFound() {
	_, err := s.source.GetHeader(s.ctx, 5000)
	require.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *ClientTestSuite) TestTooManyRequestsLowersLimit() {
	_, err := s.source.GetHeader(s.ctx, 1203)
	require.ErrorIs(s.T(), err, ErrBadResponse)

	limiter := s.source.client.getLimiter(s.source.client.hostOf(s.server.URL, s.source.client.client))
	require.Less(s.T(), float64(limiter.Limit()), 1000.0)
}

func (s *ClientTestSuite) TestGetTags() {
	tags, err := s.source.GetTags(s.ctx, "tx-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), chain.TagSet{"App-Name": "SmartWeaveAction", "Contract": "abc"}, tags)

	// Served from cache
	before := s.tagRequests.Load()
	tags, err = s.source.GetTags(s.ctx, "tx-1")
	require.NoError(s.T(), err)
	require.Len(s.T(), tags, 2)
	require.Equal(s.T(), before, s.tagRequests.Load())
}

func (s *ClientTestSuite) TestGetTagsEmpty() {
	tags, err := s.source.GetTags(s.ctx, "tx-2")
	require.NoError(s.T(), err)
	require.Empty(s.T(), tags)
	require.Equal(s.T(), chain.TagsEmpty, chain.ResolvedTags(tags).State)
}

func (s *ClientTestSuite) TestGetTagsMalformed() {
	_, err := s.source.GetTags(s.ctx, "tx-bad")
	require.Error(s.T(), err)
}

func (s *ClientTestSuite) TestGetTagsNotFound() {
	_, err := s.source.GetTags(s.ctx, "tx-missing")
	require.ErrorIs(s.T(), err, ErrNotFound)
	require.Contains(s.T(), err.Error(), fmt.Sprintf("tags of %s", "tx-missing"))
}
