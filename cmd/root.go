package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mezonai/zakat/logx"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	genesisPath string
	storeType   string
	dataDir     string
)

var rootCmd = &cobra.Command{
	Use:   "zakat",
	Short: "Zakat ledger CLI",
	Long: `Command line interface for a proof-of-work ledger that levies 2.5% on
every transfer into a common fund.

State lives in the store configured in config.ini; every command loads it,
applies one operation and saves it back.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.ini", "Path to config.ini")
	rootCmd.PersistentFlags().StringVar(&genesisPath, "genesis", "config/genesis.yml", "Path to genesis configuration file")
	rootCmd.PersistentFlags().StringVar(&storeType, "store", "", "Override [store] type (leveldb, redis, bolt or memory)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override [store] directory")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context, which
// stops a nonce search or a running ledger.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
