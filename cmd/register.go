package cmd

import (
	"github.com/mezonai/zakat/types"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var registerOpening string

var registerCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register a participant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opening := decimal.Zero
		if registerOpening != "" {
			var err error
			if opening, err = types.ParseAmount(registerOpening); err != nil {
				return err
			}
		}
		return withLedger(true, func(e *env) error {
			if err := e.ledger.Register(types.NodeID(args[0]), opening); err != nil {
				return err
			}
			pterm.Success.Printfln("Registered %s with %s", args[0], opening)
			return nil
		})
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Stop a participant from sending or mining",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(true, func(e *env) error {
			if err := e.ledger.Deactivate(types.NodeID(args[0])); err != nil {
				return err
			}
			pterm.Success.Printfln("Deactivated %s", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(registerCmd, deactivateCmd)
	registerCmd.Flags().StringVarP(&registerOpening, "balance", "b", "", "opening balance")
}
