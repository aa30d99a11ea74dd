package cmd

import (
	"fmt"

	"github.com/mezonai/zakat/snapshot"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	importForce bool
	exportDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the stored ledger to a JSON snapshot",
	Long: `Write the stored ledger to a JSON snapshot file. With --dir the snapshot
is written as ` + snapshot.FileName + ` inside the directory and older
snapshots there are removed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (exportDir != "") {
			return fmt.Errorf("give either a file or --dir")
		}
		return withLedger(false, func(e *env) error {
			path := exportDir
			var err error
			if exportDir != "" {
				path, err = snapshot.WriteLatest(exportDir, e.ledger.Snapshot())
			} else {
				path = args[0]
				err = snapshot.Export(path, e.ledger.Snapshot())
			}
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Exported %d blocks to %s", e.ledger.Height()+1, path)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a JSON snapshot and make it the stored ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(false, nil)
		if err != nil {
			return err
		}
		defer e.close()

		if e.ledger, err = snapshot.Import(args[0], e.ledgerCfg); err != nil {
			return err
		}
		exists, err := e.store.Exists()
		if err != nil {
			return err
		}
		if exists {
			if !importForce {
				return fmt.Errorf("store already holds a ledger, use --force to replace it")
			}
			if err := e.store.Clear(); err != nil {
				return err
			}
		}
		if err := e.save(); err != nil {
			return err
		}
		pterm.Success.Printfln("Imported ledger %s at height %d", e.ledger.Seed(), e.ledger.Height())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
	importCmd.Flags().BoolVar(&importForce, "force", false, "Replace a ledger that already exists in the store")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Write "+snapshot.FileName+" into this directory and drop older snapshots")
}
