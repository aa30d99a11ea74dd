package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/zakat/ledger"
)

type HealthStatus string

const (
	StatusServing    HealthStatus = "SERVING"
	StatusNotServing HealthStatus = "NOT_SERVING"
)

type HealthCheckResponse struct {
	Status        HealthStatus `json:"status"`
	Seed          string       `json:"seed"`
	Timestamp     uint64       `json:"timestamp"`
	BlockHeight   uint64       `json:"block_height"`
	PendingSize   int          `json:"pending_size"`
	Participants  int          `json:"participants"`
	ChainValid    bool         `json:"chain_valid"`
	AutoMining    bool         `json:"auto_mining"`
	BlocksMined   uint64       `json:"blocks_mined"`
	UptimeSeconds uint64       `json:"uptime_seconds"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

type HealthServiceImpl struct {
	ledger    *ledger.Ledger
	miner     *MiningService
	startedAt time.Time
}

// NewHealthService builds a health reporter. miner may be nil when
// auto-mining is off.
func NewHealthService(ld *ledger.Ledger, miner *MiningService) *HealthServiceImpl {
	return &HealthServiceImpl{ledger: ld, miner: miner, startedAt: time.Now()}
}

func (hs *HealthServiceImpl) Check(ctx context.Context) (*HealthCheckResponse, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("health check timeout: %w", ctx.Err())
	default:
	}

	now := time.Now()
	resp := &HealthCheckResponse{
		Status:        StatusServing,
		Timestamp:     uint64(now.Unix()),
		UptimeSeconds: uint64(now.Sub(hs.startedAt).Seconds()),
	}
	if hs.ledger == nil {
		resp.Status = StatusNotServing
		resp.ErrorMessage = "ledger is not available"
		return resp, nil
	}

	stats := hs.ledger.Stats()
	resp.Seed = hs.ledger.Seed()
	resp.BlockHeight = hs.ledger.Height()
	resp.PendingSize = stats.Pending
	resp.Participants = stats.Nodes
	resp.ChainValid = stats.Valid
	if hs.miner != nil {
		resp.AutoMining = hs.miner.Running()
		resp.BlocksMined = hs.miner.Mined()
		if err := hs.miner.LastError(); err != nil {
			resp.ErrorMessage = err.Error()
		}
	}

	if !stats.Valid {
		resp.Status = StatusNotServing
		if err := hs.ledger.Validate(); err != nil {
			resp.ErrorMessage = err.Error()
		}
	}
	return resp, nil
}
