// cmd/txflow/history.go
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/solana-txflow/internal/export"
	"github.com/rovshanmuradov/solana-txflow/internal/history"
)

var historyFlags struct {
	format string
	status string
	outDir string
}

var historyCmd = &cobra.Command{
	Use:   "history <wallet>",
	Short: "Show or export the recent transactions of a wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := args[0]
		entries := rt.History.Labeled(owner)

		if historyFlags.format != "" {
			path, err := export.NewHistoryExporter(rt.Log.Logger).Export(owner, entries, export.ExportOptions{
				Format:       export.ExportFormat(historyFlags.format),
				StatusFilter: history.Status(historyFlags.status),
				OutputDir:    historyFlags.outDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSTATUS\tTITLE\tSLOT\tTXID")
		for _, e := range entries {
			if historyFlags.status != "" && string(e.Status) != historyFlags.status {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.Time.Local().Format(time.DateTime), e.Status, e.Title, e.BlockSlot, e.TxID)
		}
		return tw.Flush()
	},
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.format, "export", "", "write a csv or json file instead of printing")
	f.StringVar(&historyFlags.status, "status", "", "only pending, success, fail or dropped entries")
	f.StringVar(&historyFlags.outDir, "out", ".", "export directory")
}
