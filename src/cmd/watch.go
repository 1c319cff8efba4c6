package cmd

import (
	"github.com/warp-contracts/blockwatch/src/follow"
	"github.com/warp-contracts/blockwatch/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keeps a window of the latest blocks in sync with Arweave nodes",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := follow.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-controller.CtxRunning.Done():
		case <-ctx.Done():
		}

		controller.StopWait()

		return controller.Err()
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("root-cmd")
		log.Debug("Finished watch command")
		return
	},
}
