package cmd

import (
	"fmt"

	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the ledger from genesis.yml",
	Long: `Create a new ledger:
- registering the creator and the fund
- sealing the genesis block that credits the creator's opening balance
- registering every participant listed in genesis.yml
- saving the result into the configured store

An existing ledger is kept unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initializeLedger()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Replace a ledger that already exists in the store")
}

func initializeLedger() error {
	e, err := openEnv(false, nil)
	if err != nil {
		return err
	}
	defer e.close()

	exists, err := e.store.Exists()
	if err != nil {
		return err
	}
	if exists {
		if !initForce {
			return fmt.Errorf("store already holds a ledger, use --force to replace it")
		}
		if err := e.store.Clear(); err != nil {
			return err
		}
	}

	if e.ledger, err = ledger.New(e.ledgerCfg); err != nil {
		return err
	}
	if err := e.save(); err != nil {
		return err
	}

	logx.Info("INIT", "Ledger initialized with seed ", e.ledger.Seed())
	pterm.Success.Printfln("Ledger %s created by %s in %s store", e.ledger.Seed(), e.ledger.Creator(), e.storeCfg.Type)
	return renderNodes(e.ledger.Nodes())
}
