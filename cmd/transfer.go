package cmd

import (
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type TransferConfig struct {
	From   string
	To     string
	Amount string
}

var (
	transferConfig TransferConfig
	giftConfig     TransferConfig
	levyConfig     TransferConfig
)

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer [flags]",
	Short: "Queue a transfer; 2.5% of the amount goes to the fund",
	Long: `Queue a transfer from one participant to another. The sender pays the
amount plus the levy; the receiver gets the amount. Nothing moves until the
next block is mined.

Examples:
  # C001 pays C002 100, the fund receives 2.5
  transfer -f C001 -t C002 -a 100

  # digit separators are accepted
  transfer -f C001 -t C002 -a 1_000.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := types.ParseAmount(transferConfig.Amount)
		if err != nil {
			return err
		}
		return withLedger(true, func(e *env) error {
			txs, err := e.ledger.SubmitTransfer(types.NodeID(transferConfig.From), types.NodeID(transferConfig.To), amount)
			if err != nil {
				return err
			}
			printQueued(txs...)
			return nil
		})
	},
}

var giftCmd = &cobra.Command{
	Use:   "gift [flags]",
	Short: "Queue a levy-free gift",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := types.ParseAmount(giftConfig.Amount)
		if err != nil {
			return err
		}
		return withLedger(true, func(e *env) error {
			tx, err := e.ledger.SubmitGift(types.NodeID(giftConfig.From), types.NodeID(giftConfig.To), amount)
			if err != nil {
				return err
			}
			printQueued(tx)
			return nil
		})
	},
}

var levyCmd = &cobra.Command{
	Use:   "levy [flags]",
	Short: "Queue a levy of 2.5% of the sender's balance",
	Long: `Queue a standalone levy. The amount is 2.5% of the sender's balance as it
will stand once everything already pending is mined. Without --to the levy
goes to the fund.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(true, func(e *env) error {
			tx, err := e.ledger.SubmitLevy(types.NodeID(levyConfig.From), types.NodeID(levyConfig.To))
			if err != nil {
				return err
			}
			printQueued(tx)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(transferCmd, giftCmd, levyCmd)

	transferCmd.Flags().StringVarP(&transferConfig.From, "from", "f", "", "sender id")
	transferCmd.Flags().StringVarP(&transferConfig.To, "to", "t", "", "receiver id")
	transferCmd.Flags().StringVarP(&transferConfig.Amount, "amount", "a", "", "amount")
	_ = transferCmd.MarkFlagRequired("from")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")

	giftCmd.Flags().StringVarP(&giftConfig.From, "from", "f", "", "sender id")
	giftCmd.Flags().StringVarP(&giftConfig.To, "to", "t", "", "receiver id")
	giftCmd.Flags().StringVarP(&giftConfig.Amount, "amount", "a", "", "amount")
	_ = giftCmd.MarkFlagRequired("from")
	_ = giftCmd.MarkFlagRequired("to")
	_ = giftCmd.MarkFlagRequired("amount")

	levyCmd.Flags().StringVarP(&levyConfig.From, "from", "f", "", "payer id")
	levyCmd.Flags().StringVarP(&levyConfig.To, "to", "t", "", "recipient id (default: the fund)")
	_ = levyCmd.MarkFlagRequired("from")
}

func printQueued(txs ...*transaction.Transaction) {
	for _, tx := range txs {
		pterm.Success.Printfln("Queued %s %s -> %s | amount=%s | levy=%s | hash=%s",
			tx.Kind, tx.Sender, tx.Receiver, tx.Amount, tx.Levy, tx.Hash())
	}
}
