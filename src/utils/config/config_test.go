package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) SetupTest() {
	viper.Reset()
}

func (s *ConfigTestSuite) TestDefaults() {
	config := Default()
	require.NotNil(s.T(), config)
	require.Equal(s.T(), ":7777", config.RESTListenAddress)
	require.Equal(s.T(), 30*time.Second, config.StopTimeout)
	require.Equal(s.T(), 20, config.Watcher.BlocksToSync)
	require.Equal(s.T(), 65*time.Second, config.Watcher.MinPollTime)
	require.Equal(s.T(), 150*time.Second, config.Watcher.MaxPollTime)
	require.Equal(s.T(), 3, config.Watcher.MaxTipDeferrals)
	require.Equal(s.T(), uint64(7), config.Watcher.Blocks.MaxAttempts)
	require.Equal(s.T(), "leveldb", config.Store.Backend)
	require.Equal(s.T(), "ar-blocks", config.Redis.ChannelName)
	require.False(s.T(), config.Redis.Enabled)
}

func (s *ConfigTestSuite) TestEnvOverride() {
	s.T().Setenv("BLOCKWATCH_WATCHER_BLOCKS_TO_SYNC", "7")
	s.T().Setenv("BLOCKWATCH_WATCHER_MIN_POLL_TIME", "3s")

	config, err := Load("")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 7, config.Watcher.BlocksToSync)
	require.Equal(s.T(), 3*time.Second, config.Watcher.MinPollTime)
}

func (s *ConfigTestSuite) TestFile() {
	path := filepath.Join(s.T().TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{"Watcher": {"BlocksToSync": 11, "RetrieveTags": true}, "Store": {"Backend": "postgres"}}`), 0600)
	require.NoError(s.T(), err)

	config, err := Load(path)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 11, config.Watcher.BlocksToSync)
	require.True(s.T(), config.Watcher.RetrieveTags)
	require.Equal(s.T(), "postgres", config.Store.Backend)

	// Not overwritten
	require.Equal(s.T(), 3, config.Watcher.MaxTipDeferrals)
}

func (s *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(s.T().TempDir(), "missing.json"))
	require.Error(s.T(), err)
}
