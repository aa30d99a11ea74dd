package cmd

import (
	"fmt"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	historyNode   string
	showPending   bool
	validateQuiet bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print ledger statistics and every participant",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(false, func(e *env) error {
			renderStats(e.ledger)
			if err := renderNodes(e.ledger.Nodes()); err != nil {
				return err
			}
			if showPending {
				return renderPending(e.ledger)
			}
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print committed transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(false, func(e *env) error {
			entries := e.ledger.History()
			if historyNode != "" {
				id, err := types.ParseNodeID(historyNode)
				if err != nil {
					return err
				}
				entries = e.ledger.HistoryOf(id)
			}
			return renderHistory(entries)
		})
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(false, func(e *env) error {
			return renderBlocks(e.ledger.Blocks())
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify every block digest, link and balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(false, func(e *env) error {
			if err := e.ledger.Validate(); err != nil {
				if !validateQuiet {
					pterm.Error.Println("Ledger is INVALID:", err.Error())
				}
				return err
			}
			if !validateQuiet {
				pterm.Success.Printfln("Ledger is valid: %d blocks, balances match a full replay", e.ledger.Height()+1)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(showCmd, historyCmd, blocksCmd, validateCmd)
	showCmd.Flags().BoolVarP(&showPending, "pending", "p", false, "also list pending transactions")
	historyCmd.Flags().StringVarP(&historyNode, "node", "n", "", "only transactions sent or received by this participant")
	validateCmd.Flags().BoolVarP(&validateQuiet, "quiet", "q", false, "only set the exit status")
}

func renderStats(l *ledger.Ledger) {
	st := l.Stats()
	valid := pterm.LightGreen("valid")
	if !st.Valid {
		valid = pterm.LightRed("INVALID")
	}
	pterm.DefaultBox.WithTitle(pterm.LightYellow("|LEDGER|")).WithTitleTopCenter().Println(
		pterm.Sprintfln("seed:          %s", l.Seed()) +
			pterm.Sprintfln("creator:       %s", l.Creator()) +
			pterm.Sprintfln("blocks:        %d", st.Blocks) +
			pterm.Sprintfln("transactions:  %d (%d pending)", st.Transactions, st.Pending) +
			pterm.Sprintfln("zakat:         %s collected", st.LevyCollected) +
			pterm.Sprintfln("participants:  %d (%d active)", st.Nodes, st.ActiveNodes) +
			pterm.Sprintf("chain:         %s", valid))
}

func renderNodes(nodes []*types.Node) error {
	data := pterm.TableData{{"ID", "Balance", "Opening", "Txs", "Levy paid", "Levy received", "Active"}}
	for _, n := range nodes {
		active := pterm.LightGreen("yes")
		if !n.Active {
			active = pterm.LightRed("no")
		}
		data = append(data, []string{
			n.ID.String(), n.Balance.String(), n.OpeningBalance.String(), fmt.Sprint(n.TxCount),
			n.LevyPaid.String(), n.LevyReceived.String(), active,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func renderPending(l *ledger.Ledger) error {
	data := pterm.TableData{{"#", "Kind", "Sender", "Receiver", "Amount", "Levy"}}
	for i, tx := range l.Pending() {
		data = append(data, []string{
			fmt.Sprint(i), string(tx.Kind), tx.Sender.String(), tx.Receiver.String(), tx.Amount.String(), tx.Levy.String(),
		})
	}
	pterm.DefaultSection.Println("Pending")
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderHistory(entries []ledger.HistoryEntry) error {
	data := pterm.TableData{{"Block", "Kind", "Sender", "Receiver", "Amount", "Levy", "Time", "Block hash"}}
	for _, h := range entries {
		tx := h.Transaction
		data = append(data, []string{
			fmt.Sprint(h.BlockIndex), string(tx.Kind), tx.Sender.String(), tx.Receiver.String(),
			tx.Amount.String(), tx.Levy.String(), tx.Timestamp.Format("2006-01-02 15:04:05"), shortHash(h.BlockHash),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderBlocks(blocks []*block.Block) error {
	data := pterm.TableData{{"Index", "Txs", "Difficulty", "Nonce", "Time", "Previous", "Hash"}}
	for _, b := range blocks {
		data = append(data, []string{
			fmt.Sprint(b.Index), fmt.Sprint(len(b.Transactions)), fmt.Sprint(b.Difficulty), fmt.Sprint(b.Nonce),
			b.Timestamp.Format("2006-01-02 15:04:05"), shortHash(b.PrevHash), shortHash(b.Hash),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
