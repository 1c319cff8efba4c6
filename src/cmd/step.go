package cmd

import (
	"encoding/json"
	"os"

	"github.com/warp-contracts/blockwatch/src/chain"
	"github.com/warp-contracts/blockwatch/src/store"
	"github.com/warp-contracts/blockwatch/src/utils/arweave"
	"github.com/warp-contracts/blockwatch/src/utils/logger"
	"github.com/warp-contracts/blockwatch/src/watch"

	"github.com/spf13/cobra"
)

var stepSave bool

func init() {
	stepCmd.PersistentFlags().BoolVar(&stepSave, "save", false, "Save the updated window in the store")
	RootCmd.AddCommand(stepCmd)
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Runs one sync iteration against the stored window and prints the result",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("step")

		window := chain.EmptyWindow(conf.Watcher.BlocksToSync)

		var db store.Store
		if conf.Watcher.Persist {
			db, err = store.Open(ctx, conf)
			if err != nil {
				return
			}
			defer db.Close()

			var blocks []chain.SyncedBlock
			blocks, err = db.LoadAll(ctx)
			if err != nil {
				return
			}

			window, err = chain.NewWindow(conf.Watcher.BlocksToSync, blocks...)
			if err != nil {
				return
			}
		}

		syncer := watch.NewSyncer(&conf.Watcher).
			WithSource(arweave.NewSource(&conf.Arweave)).
			WithObserver(watch.NewLogObserver(log))

		result, err := syncer.RunOneIteration(ctx, window)
		if err != nil {
			return
		}

		if stepSave && db != nil {
			err = db.SaveMany(ctx, result.Window.Blocks())
			if err != nil {
				return
			}

			bottom, ok := result.Window.Bottom()
			if ok {
				err = db.TrimBelow(ctx, bottom.Height())
				if err != nil {
					return
				}
			}
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	},
}
