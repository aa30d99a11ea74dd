package ledger

import (
	"fmt"
	"time"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/config"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// Participant is registered right after the genesis block.
type Participant struct {
	ID      types.NodeID
	Balance decimal.Decimal
}

type Config struct {
	Creator        types.NodeID
	CreatorBalance decimal.Decimal
	Fund           types.NodeID
	Participants   []Participant

	LevyRate     decimal.Decimal
	MiningReward decimal.Decimal
	// ExplicitTransferLevy records a transfer's levy as its own levy
	// transaction to the fund instead of inside the transfer.
	ExplicitTransferLevy bool
	MaxPending           int

	MinDifficulty     block.Difficulty
	GenesisDifficulty block.Difficulty
	MaxAttempts       uint64

	EventBus *events.EventBus
	Now      func() time.Time
}

func DefaultConfig(creator types.NodeID) Config {
	return Config{
		Creator:        creator,
		CreatorBalance: decimal.RequireFromString(config.DefaultOpeningBalance),
		Fund:           types.NodeID(config.DefaultFund),
		LevyRate:       types.DefaultLevyRate,
		MiningReward:   decimal.RequireFromString(config.DefaultMiningReward),
		MaxAttempts:    config.DefaultMaxAttempts,
	}
}

// ConfigFromFiles combines genesis.yml with the [ledger] and [mining]
// sections of config.ini.
func ConfigFromFiles(g *config.GenesisConfig, lc *config.LedgerConfig, mc *config.MiningConfig) (Config, error) {
	creator, err := types.ParseNodeID(g.Creator)
	if err != nil {
		return Config{}, fmt.Errorf("creator: %w", err)
	}
	cfg := DefaultConfig(creator)

	if cfg.CreatorBalance, err = types.ParseAmount(g.OpeningBalance); err != nil {
		return Config{}, fmt.Errorf("opening_balance: %w", err)
	}
	if cfg.Fund, err = types.ParseNodeID(g.Fund); err != nil {
		return Config{}, fmt.Errorf("fund: %w", err)
	}
	for _, p := range g.Participants {
		id, err := types.ParseNodeID(p.ID)
		if err != nil {
			return Config{}, fmt.Errorf("participant: %w", err)
		}
		bal, err := types.ParseAmount(p.Balance)
		if err != nil {
			return Config{}, fmt.Errorf("participant %s: %w", id, err)
		}
		cfg.Participants = append(cfg.Participants, Participant{ID: id, Balance: bal})
	}

	if lc != nil {
		if cfg.LevyRate, err = types.ParseAmount(lc.LevyRate); err != nil {
			return Config{}, fmt.Errorf("levy_rate: %w", err)
		}
		if cfg.MiningReward, err = types.ParseAmount(lc.MiningReward); err != nil {
			return Config{}, fmt.Errorf("mining_reward: %w", err)
		}
		cfg.ExplicitTransferLevy = lc.ExplicitTransferLevy
		cfg.MaxPending = lc.MaxPending
	}
	if mc != nil {
		cfg.MinDifficulty = block.Difficulty(mc.MinDifficulty)
		cfg.GenesisDifficulty = block.Difficulty(mc.MinDifficulty)
		cfg.MaxAttempts = mc.MaxAttempts
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if _, err := types.ParseNodeID(c.Creator.String()); err != nil {
		return fmt.Errorf("creator: %w", err)
	}
	if _, err := types.ParseNodeID(c.Fund.String()); err != nil {
		return fmt.Errorf("fund: %w", err)
	}
	if c.LevyRate.IsNegative() || c.LevyRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("levy rate %s must be in [0, 1)", c.LevyRate)
	}
	if !c.MiningReward.IsPositive() {
		return fmt.Errorf("mining reward must be positive, got %s", c.MiningReward)
	}
	if c.CreatorBalance.IsNegative() {
		return fmt.Errorf("creator balance must not be negative")
	}
	if c.Fund == c.Creator {
		return fmt.Errorf("fund and creator must differ")
	}
	if err := c.MinDifficulty.Validate(); err != nil {
		return err
	}
	if c.GenesisDifficulty < c.MinDifficulty {
		c.GenesisDifficulty = c.MinDifficulty
	}
	return nil
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}
