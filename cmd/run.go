package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/zakat/api"
	"github.com/mezonai/zakat/config"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/ratelimit"
	"github.com/mezonai/zakat/service"
	"github.com/mezonai/zakat/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	runListenAddr string
	runInterval   time.Duration
	runMiner      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the ledger over HTTP, optionally mining on an interval",
	Long: `Serve the stored ledger over HTTP until interrupted. Every change is saved
back to the store. With a positive mining interval (--interval or
[mining] auto_interval_ms) pending transactions are mined automatically.
Submissions are throttled per client IP and per sender as set in [api].

Routes: /healthz /metrics /stats /blocks /history /pending /nodes
/nodes/{id} /nodes/{id}/balance /transactions/{hash} /transfers /gifts
/levies. POST /blocks mines one block on demand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLedger(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runListenAddr, "listen", "l", "", "HTTP listen address (default: [api] listen_addr)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "auto-mining interval (default: [mining] auto_interval_ms)")
	runCmd.Flags().StringVarP(&runMiner, "miner", "m", "", "auto-mining miner id (default: [mining] miner)")
}

func runLedger(ctx context.Context) error {
	apiCfg, err := config.LoadAPIConfig(configPath)
	if err != nil {
		return err
	}
	listenAddr := runListenAddr
	if listenAddr == "" {
		listenAddr = apiCfg.ListenAddr
	}

	monitoring.InitMetrics()

	bus := events.NewEventBus()
	e, err := openEnv(true, bus)
	if err != nil {
		return err
	}
	defer e.close()

	persist := service.NewPersistService(e.ledger, bus, e.store)
	persist.Start(ctx)
	defer func() {
		if err := persist.Stop(); err != nil {
			logx.Error("CMD", "Final save failed:", err.Error())
		}
	}()

	interval := runInterval
	if interval <= 0 {
		interval = time.Duration(e.mining.AutoIntervalMs) * time.Millisecond
	}
	var miner *service.MiningService
	if interval > 0 {
		id := runMiner
		if id == "" {
			id = e.mining.Miner
		}
		miner, err = service.NewMiningService(e.ledger, types.NodeID(id), e.difficulty(-1), e.timeout(0), interval)
		if err != nil {
			return fmt.Errorf("auto-mining: %w", err)
		}
		miner.Start(ctx)
		defer miner.Stop()
	}

	tracker := service.NewTransactionTracker(bus)
	tracker.Start(ctx, e.ledger)
	defer tracker.Stop()
	logx.Info("CMD", fmt.Sprintf("Event bus ready | subscribers=%d", bus.GetTotalSubscriptions()))

	server := api.NewAPIServer(e.ledger, service.NewHealthService(e.ledger, miner), tracker, listenAddr)
	server.SetLimiter(ratelimit.NewSubmissionLimiter(submissionLimits(apiCfg)))
	server.SetMiningDefaults(e.difficulty(-1), e.timeout(0))
	server.Start()
	pterm.Info.Printfln("Serving ledger %s on %s (height %d)", e.ledger.Seed(), listenAddr, e.ledger.Height())

	<-ctx.Done()
	logx.Info("CMD", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func submissionLimits(c *config.APIConfig) *ratelimit.SubmissionLimiterConfig {
	window := func(n int) *ratelimit.RateLimiterConfig {
		return &ratelimit.RateLimiterConfig{
			MaxRequests:     n,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		}
	}
	return &ratelimit.SubmissionLimiterConfig{
		IPConfig:          window(c.IPRateLimit),
		ParticipantConfig: window(c.ParticipantRateLimit),
		GlobalConfig:      window(c.GlobalRateLimit),
	}
}
