package cmd

import (
	"os"
	"time"

	"github.com/warp-contracts/blockwatch/src/store"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Prints blocks kept in the store, newest first",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		db, err := store.Open(ctx, conf)
		if err != nil {
			return
		}
		defer db.Close()

		return store.Dump(ctx, db, os.Stdout, time.Now())
	},
}
