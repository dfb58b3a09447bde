// cmd/txflow/root.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/solana-txflow/internal/app"
	"github.com/rovshanmuradov/solana-txflow/internal/config"
)

const shutdownTimeout = 30 * time.Second

var (
	cfgFile     string
	metricsAddr string

	rt *app.Runtime
)

var rootCmd = &cobra.Command{
	Use:           "txflow",
	Short:         "Build, sign, send and track Solana transactions",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		rt, err = app.New(cmd.Context(), cfg, app.Options{
			Console:     cmd.OutOrStdout(),
			LogConsole:  cmd.ErrOrStderr(),
			MetricsAddr: metricsAddr,
		})
		return err
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return closeRuntime()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("TXFLOW_CONFIG"), "config file (json, yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	rootCmd.AddCommand(transferCmd, historyCmd, refreshCmd)
}

func closeRuntime() error {
	if rt == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := rt.Close(ctx)
	rt = nil
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
