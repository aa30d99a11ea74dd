package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/zakat/block"
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
)

// Candidate is an unsealed block built from a snapshot of the pending queue
// plus the miner's reward. It records where the queue head was so Commit can
// tell whether another block got in first.
type Candidate struct {
	Block  *block.Block
	Miner  types.NodeID
	head   uint64
	queued int
}

// Mine prepares a candidate, seals it at difficulty and commits it. A
// positive timeout bounds the nonce search on top of ctx and of the
// configured attempt cap. It returns the index of the committed block.
func (l *Ledger) Mine(ctx context.Context, miner types.NodeID, difficulty block.Difficulty, timeout time.Duration) (uint64, error) {
	c, err := l.PrepareCandidate(miner)
	if err != nil {
		return 0, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := l.Seal(ctx, c, difficulty); err != nil {
		return 0, err
	}
	return l.Commit(c)
}

// PrepareCandidate snapshots the pending queue into a candidate block for
// miner. An empty queue yields a block holding only the reward.
func (l *Ledger) PrepareCandidate(miner types.NodeID) (*Candidate, error) {
	miner, err := normalizeID(miner)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	node, err := l.registry.Get(miner)
	if err != nil {
		return nil, err
	}
	if !node.Active {
		return nil, zerrors.Errorf(zerrors.ErrCodeParticipantInactive, "participant %s is inactive and cannot mine", miner)
	}

	pending, head := l.mempool.GetBatch(0)
	now := l.cfg.now()
	reward, err := transaction.NewMiningReward(miner, l.cfg.MiningReward, now)
	if err != nil {
		return nil, err
	}
	txs := append(cloneTxs(pending), reward)

	tip := l.chain[len(l.chain)-1]
	candidate := block.AssembleBlock(tip.Index+1, tip.Hash, l.seed, txs, now)
	logx.Debug("MINER", fmt.Sprintf("Prepared candidate %d for %s with %d pending transaction(s)", candidate.Index, miner, len(pending)))
	return &Candidate{
		Block:  candidate,
		Miner:  miner,
		head:   head,
		queued: len(pending),
	}, nil
}

// Seal runs the nonce search. It holds no ledger lock, so admissions and
// queries proceed while it runs.
func (l *Ledger) Seal(ctx context.Context, c *Candidate, difficulty block.Difficulty) error {
	if difficulty < l.cfg.MinDifficulty {
		return zerrors.Errorf(zerrors.ErrCodeInvalidDifficulty, "difficulty %d is below the ledger minimum %d", difficulty, l.cfg.MinDifficulty)
	}

	start := time.Now()
	res, err := block.Seal(ctx, c.Block, difficulty, l.cfg.MaxAttempts)
	monitoring.RecordSeal(time.Since(start), res.Attempts)
	if err != nil {
		switch zerrors.CodeOf(err) {
		case zerrors.ErrCodeMiningTimeout:
			monitoring.RecordMiningOutcome(monitoring.MiningTimedOut)
		case zerrors.ErrCodeMiningCanceled:
			monitoring.RecordMiningOutcome(monitoring.MiningCanceled)
		}
		logx.Warn("MINER", fmt.Sprintf("Seal of block %d by %s failed: %v", c.Block.Index, c.Miner, err))
		return err
	}

	c.Block.Apply(res, difficulty)
	logx.Info("MINER", fmt.Sprintf("Sealed block %d | miner=%s | nonce=%d | attempts=%d | hash=%s | took=%s",
		c.Block.Index, c.Miner, res.Nonce, res.Attempts, c.Block.ShortHash(), time.Since(start)))
	return nil
}

// Commit applies a sealed candidate and appends it. Only the first candidate
// for an index commits; a candidate built on an outdated tip or queue is
// discarded with ErrStaleCandidate and changes nothing.
func (l *Ledger) Commit(c *Candidate) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := c.Block.Clone()
	tip := l.chain[len(l.chain)-1]
	if b.Index != tip.Index+1 || b.PrevHash != tip.Hash || l.mempool.Head() != c.head {
		monitoring.RecordMiningOutcome(monitoring.MiningStale)
		l.publish(events.NewCandidateDiscarded(b.Index, b.Hash, c.Miner))
		logx.Warn("MINER", fmt.Sprintf("Discarded candidate %d from %s: chain tip is %d", b.Index, c.Miner, tip.Index))
		return 0, zerrors.Errorf(zerrors.ErrCodeStaleCandidate, "block %d already committed", b.Index)
	}
	if b.Seed != l.seed {
		return 0, zerrors.Errorf(zerrors.ErrCodeInternal, "candidate carries a foreign seed")
	}
	if b.Difficulty < l.cfg.MinDifficulty {
		return 0, zerrors.Errorf(zerrors.ErrCodeInvalidDifficulty, "block sealed at %d, ledger minimum is %d", b.Difficulty, l.cfg.MinDifficulty)
	}
	if err := b.Verify(); err != nil {
		return 0, zerrors.Errorf(zerrors.ErrCodeInternal, "candidate %d is not sealed: %v", b.Index, err)
	}

	if err := l.appendWithoutLocking(b); err != nil {
		return 0, err
	}
	// head was checked above under the same lock
	l.mempool.RemoveBatch(c.head, c.queued)

	l.recordCommit(b, c.Miner)
	return b.Index, nil
}

func (l *Ledger) recordCommit(b *block.Block, miner types.NodeID) {
	size := l.mempool.Len()
	monitoring.RecordMiningOutcome(monitoring.MiningCommitted)
	monitoring.SetPendingSize(size)
	monitoring.RecordTxInBlock(len(b.Transactions))

	levy := levyOf(b)
	if f, _ := levy.Float64(); f > 0 {
		monitoring.AddLevyCollected(f)
	}

	l.publish(events.NewBlockCommitted(b.Index, b.Hash, miner, cloneTxs(b.Transactions)))
	logx.Info("LEDGER", fmt.Sprintf("Committed block %d | miner=%s | txs=%d | levy=%s | pending=%d | hash=%s",
		b.Index, miner, len(b.Transactions), levy, size, b.ShortHash()))
}
