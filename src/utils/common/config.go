package common

import (
	"context"

	"github.com/warp-contracts/blockwatch/src/utils/config"
)

type contextKey int

const configKey contextKey = iota

func SetConfig(ctx context.Context, config *config.Config) context.Context {
	return context.WithValue(ctx, configKey, config)
}

// Returns nil if config wasn't set
func GetConfig(ctx context.Context) *config.Config {
	config, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		return nil
	}
	return config
}
