// cmd/txflow/refresh.go
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshWatch bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Resolve pending history entries against the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if refreshWatch {
			rt.Log.Info("Watching pending transactions", zap.Duration("interval", rt.Config.RefreshInterval))
			err := rt.Refresher.Run(cmd.Context())
			if errors.Is(err, cmd.Context().Err()) {
				return nil
			}
			return err
		}

		changed, err := rt.Refresher.RefreshOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries updated, %d still pending\n", changed, len(rt.History.Pending()))
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVarP(&refreshWatch, "watch", "w", false, "keep refreshing until interrupted")
}
