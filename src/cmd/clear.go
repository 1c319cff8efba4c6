package cmd

import (
	"github.com/warp-contracts/blockwatch/src/store"
	"github.com/warp-contracts/blockwatch/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(clearCmd)
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes all blocks from the store",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		db, err := store.Open(ctx, conf)
		if err != nil {
			return
		}
		defer db.Close()

		err = db.Clear(ctx)
		if err != nil {
			return
		}

		logger.NewSublogger("clear").Info("Store cleared")
		return
	},
}
