package config

import (
	"github.com/spf13/viper"
)

type Store struct {
	// Where the window is kept: "leveldb" or "postgres"
	Backend string

	// LevelDB directory
	Path string
}

func setStoreDefaults() {
	viper.SetDefault("Store.Backend", "leveldb")
	viper.SetDefault("Store.Path", ".db.ar-blocks")
}
