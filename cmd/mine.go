package cmd

import (
	"time"

	"github.com/mezonai/zakat/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	mineMiner      string
	mineDifficulty int
	mineTimeout    time.Duration
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Seal the pending queue into a block",
	Long: `Seal every pending transaction, plus the miner's reward, into the next
block. Difficulty and timeout default to the [mining] section of config.ini.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(true, func(e *env) error {
			miner := mineMiner
			if miner == "" {
				miner = e.mining.Miner
			}
			spinner, _ := pterm.DefaultSpinner.Start("Searching for a nonce...")
			idx, err := e.ledger.Mine(cmd.Context(), types.NodeID(miner), e.difficulty(mineDifficulty), e.timeout(mineTimeout))
			if err != nil {
				spinner.Fail(err.Error())
				return err
			}
			blocks := e.ledger.Blocks()
			b := blocks[len(blocks)-1]
			spinner.Success(pterm.Sprintf("Mined block %d | nonce=%d | txs=%d | hash=%s", idx, b.Nonce, len(b.Transactions), b.Hash))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().StringVarP(&mineMiner, "miner", "m", "", "miner id (default: [mining] miner)")
	mineCmd.Flags().IntVarP(&mineDifficulty, "difficulty", "d", -1, "leading zero hex digits (default: [mining] difficulty)")
	mineCmd.Flags().DurationVar(&mineTimeout, "timeout", 0, "give up after this long (default: [mining] timeout_ms)")
}
