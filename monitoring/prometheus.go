package monitoring

import (
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mezonai/zakat/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TxRejectedReason string

var (
	TxUnknownParticipant TxRejectedReason = "unknown_participant"
	TxInactiveSender     TxRejectedReason = "inactive_sender"
	TxInvalidAmount      TxRejectedReason = "invalid_amount"
	TxInsufficientFunds  TxRejectedReason = "insufficient_funds"
	TxMempoolFull        TxRejectedReason = "mempool_full"
	TxRateLimited        TxRejectedReason = "rate_limited"
	TxRejectedUnknown    TxRejectedReason = "other"
)

type MiningOutcome string

var (
	MiningCommitted MiningOutcome = "committed"
	MiningTimedOut  MiningOutcome = "timeout"
	MiningCanceled  MiningOutcome = "canceled"
	MiningStale     MiningOutcome = "stale"
)

type ledgerPromMetrics struct {
	upUnixSeconds   prometheus.Gauge
	pendingSize     prometheus.Gauge
	blockHeight     prometheus.Gauge
	participants    prometheus.Gauge
	rejectedTxCount *prometheus.CounterVec
	admittedTxCount *prometheus.CounterVec
	miningOutcome   *prometheus.CounterVec
	sealDuration    prometheus.Histogram
	sealAttempts    prometheus.Histogram
	txInBlock       prometheus.Histogram
	levyCollected   prometheus.Counter
	panicCount      prometheus.Counter
	trackedTx       *prometheus.GaugeVec
}

func newLedgerPromMetrics() *ledgerPromMetrics {
	return &ledgerPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zakat_ledger_up_timestamp_unix_seconds",
				Help: "Unix timestamp the ledger process started at",
			},
		),
		pendingSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zakat_ledger_pending_size",
				Help: "Transactions admitted but not yet mined",
			},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zakat_ledger_block_height",
				Help: "Index of the latest committed block",
			},
		),
		participants: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zakat_ledger_participants",
				Help: "Registered participants, fund included",
			},
		),
		rejectedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zakat_ledger_rejected_tx_count",
				Help: "The total number of rejected submissions",
			},
			[]string{"reason"},
		),
		admittedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zakat_ledger_admitted_tx_count",
				Help: "The total number of admitted transactions by kind",
			},
			[]string{"kind"},
		),
		miningOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zakat_ledger_mining_outcome_count",
				Help: "Mining attempts by outcome",
			},
			[]string{"outcome"},
		),
		sealDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zakat_ledger_seal_duration_seconds",
				Help:    "Wall time of the nonce search",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		sealAttempts: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zakat_ledger_seal_attempts",
				Help:    "Nonces tried before a seal was found or the search gave up",
				Buckets: prometheus.ExponentialBuckets(16, 4, 10),
			},
		),
		txInBlock: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "zakat_ledger_tx_in_block",
				Help: "Number of tx in block, mining reward included",
			},
		),
		levyCollected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zakat_ledger_levy_collected_total",
				Help: "Levy committed to the chain since start, in ledger units",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zakat_ledger_panic_count",
				Help: "Panics recovered in background goroutines",
			},
		),
		trackedTx: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zakat_ledger_tracked_tx",
				Help: "Transactions known to the status tracker by state",
			},
			[]string{"state"},
		),
	}
}

var (
	nodeMetrics *ledgerPromMetrics
	initOnce    sync.Once
)

// InitMetrics registers the collectors. Until it is called every recorder
// below is a no-op, so the ledger can run without prometheus.
func InitMetrics() {
	initOnce.Do(func() {
		nodeMetrics = newLedgerPromMetrics()
		nodeMetrics.upUnixSeconds.SetToCurrentTime()
	})
}

func RegisterMetrics(router *mux.Router) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	router.Handle("/metrics", promhttp.Handler())
}

func SetPendingSize(size int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.pendingSize.Set(float64(size))
}

func SetBlockHeight(height uint64) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.blockHeight.Set(float64(height))
}

func SetParticipants(n int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.participants.Set(float64(n))
}

func RecordRejectedTx(reason TxRejectedReason) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.rejectedTxCount.With(prometheus.Labels{"reason": string(reason)}).Inc()
}

func RecordAdmittedTx(kind string) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.admittedTxCount.With(prometheus.Labels{"kind": kind}).Inc()
}

func RecordMiningOutcome(outcome MiningOutcome) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.miningOutcome.With(prometheus.Labels{"outcome": string(outcome)}).Inc()
}

func RecordSeal(duration time.Duration, attempts uint64) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.sealDuration.Observe(duration.Seconds())
	nodeMetrics.sealAttempts.Observe(float64(attempts))
}

func RecordTxInBlock(txCount int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.txInBlock.Observe(float64(txCount))
}

func AddLevyCollected(amount float64) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.levyCollected.Add(amount)
}

func IncreasePanicCount() {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.panicCount.Inc()
}

func SetTrackedTx(count int64, state string) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.trackedTx.With(prometheus.Labels{"state": state}).Set(float64(count))
}
