package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/zakat/block"
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/exception"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/types"
)

// MiningService mines the pending queue on a fixed interval on behalf of one
// miner. Ticks with an empty queue are skipped.
type MiningService struct {
	ledger     *ledger.Ledger
	miner      types.NodeID
	difficulty block.Difficulty
	timeout    time.Duration
	interval   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	mined   uint64
	lastErr error
}

func NewMiningService(ld *ledger.Ledger, miner types.NodeID, difficulty block.Difficulty, timeout, interval time.Duration) (*MiningService, error) {
	if ld == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("mining interval must be positive, got %s", interval)
	}
	if _, err := ld.Node(miner); err != nil {
		return nil, err
	}
	if difficulty < ld.MinDifficulty() {
		return nil, zerrors.Errorf(zerrors.ErrCodeInvalidDifficulty, "difficulty %d below ledger minimum %d", difficulty, ld.MinDifficulty())
	}
	return &MiningService{
		ledger:     ld,
		miner:      miner,
		difficulty: difficulty,
		timeout:    timeout,
		interval:   interval,
	}, nil
}

// Start launches the mining loop. It is a no-op when already running.
func (s *MiningService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done

	logx.Info("MINER", fmt.Sprintf("Auto-mining every %s | miner=%s | difficulty=%d", s.interval, s.miner, s.difficulty))
	exception.SafeGo("MiningService", func() {
		defer close(done)
		s.loop(ctx)
	})
}

// Stop cancels the loop, including a nonce search in flight, and waits for
// it to exit.
func (s *MiningService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logx.Info("MINER", "Auto-mining stopped")
}

func (s *MiningService) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a panicking round is counted and the loop keeps ticking
			exception.Run("MiningRound", func() {
				if _, _, err := s.MineOnce(ctx); err != nil && ctx.Err() == nil {
					logx.Warn("MINER", "Auto-mining round failed:", err.Error())
				}
			})
		}
	}
}

// MineOnce mines one block if anything is pending. It reports whether a
// block was committed. Losing the commit race is not an error here.
func (s *MiningService) MineOnce(ctx context.Context) (uint64, bool, error) {
	if len(s.ledger.Pending()) == 0 {
		return 0, false, nil
	}
	idx, err := s.ledger.Mine(ctx, s.miner, s.difficulty, s.timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.mined++
		s.lastErr = nil
		return idx, true, nil
	case errors.Is(err, zerrors.ErrStaleCandidate):
		return 0, false, nil
	default:
		s.lastErr = err
		return 0, false, err
	}
}

// Mined returns the number of blocks this service committed.
func (s *MiningService) Mined() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mined
}

func (s *MiningService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *MiningService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
