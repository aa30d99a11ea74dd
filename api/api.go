package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mezonai/zakat/block"
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/exception"
	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/ratelimit"
	"github.com/mezonai/zakat/service"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

const (
	maxBodyBytes = 1 << 16

	defaultMineTimeout = 30 * time.Second
	maxMineTimeout     = 5 * time.Minute
)

type TransferReq struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Amount   string `json:"amount"`
}

type LevyReq struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
}

type RegisterReq struct {
	ID             string `json:"id"`
	OpeningBalance string `json:"opening_balance"`
}

// MineReq asks for one block. Zero difficulty or timeout means the server
// default.
type MineReq struct {
	Miner      string `json:"miner"`
	Difficulty int    `json:"difficulty,omitempty"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`
}

type MineResp struct {
	Index      uint64           `json:"index"`
	Hash       string           `json:"hash"`
	Miner      types.NodeID     `json:"miner"`
	Difficulty block.Difficulty `json:"difficulty"`
	TxCount    int              `json:"transactions_count"`
}

type BalanceResp struct {
	ID      types.NodeID    `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Pending decimal.Decimal `json:"pending_balance"`
}

type APIServer struct {
	Ledger     *ledger.Ledger
	Health     *service.HealthServiceImpl
	Tracker    *service.TransactionTracker
	ListenAddr string

	router  *mux.Router
	server  *http.Server
	limiter *ratelimit.SubmissionLimiter

	mineDifficulty block.Difficulty
	mineTimeout    time.Duration
}

// NewAPIServer wires the routes. tracker may be nil, which disables
// /transactions/{hash}.
func NewAPIServer(ld *ledger.Ledger, health *service.HealthServiceImpl, tracker *service.TransactionTracker, addr string) *APIServer {
	s := &APIServer{
		Ledger:      ld,
		Health:      health,
		Tracker:     tracker,
		ListenAddr:  addr,
		router:      mux.NewRouter(),
		mineTimeout: defaultMineTimeout,
	}
	if ld != nil {
		s.mineDifficulty = ld.MinDifficulty()
	}
	s.routes()
	return s
}

func (s *APIServer) routes() {
	r := s.router
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/blocks", s.handleBlocks).Methods(http.MethodGet)
	r.HandleFunc("/blocks", s.limited(s.handleMine)).Methods(http.MethodPost)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/pending", s.handlePending).Methods(http.MethodGet)
	r.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes", s.limited(s.handleRegister)).Methods(http.MethodPost)
	r.HandleFunc("/nodes/{id}", s.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{id}/balance", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{id}", s.limited(s.handleDeactivate)).Methods(http.MethodDelete)
	r.HandleFunc("/transfers", s.limited(s.handleTransfer)).Methods(http.MethodPost)
	r.HandleFunc("/gifts", s.limited(s.handleGift)).Methods(http.MethodPost)
	r.HandleFunc("/levies", s.limited(s.handleLevy)).Methods(http.MethodPost)
	if s.Tracker != nil {
		r.HandleFunc("/transactions/{hash}", s.handleTxStatus).Methods(http.MethodGet)
	}
	monitoring.RegisterMetrics(r)
}

// SetMiningDefaults sets what POST /blocks uses when the request leaves
// difficulty or timeout out.
func (s *APIServer) SetMiningDefaults(difficulty block.Difficulty, timeout time.Duration) {
	s.mineDifficulty = difficulty
	if timeout > 0 {
		s.mineTimeout = timeout
	}
}

// SetLimiter throttles the mutating routes. Shutdown stops the limiter.
func (s *APIServer) SetLimiter(l *ratelimit.SubmissionLimiter) {
	s.limiter = l
}

// Handler exposes the router, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

func (s *APIServer) Start() {
	s.server = &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logx.Info("API", "API listen on", s.ListenAddr)
	exception.SafeGo("APIServer", func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error("API", "API server stopped:", err.Error())
		}
	})
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *APIServer) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			if err := s.limiter.AllowIP(clientIP(r)); err != nil {
				writeRateLimited(w, err)
				return
			}
		}
		next(w, r)
	}
}

// allowSender applies the per-participant limit once the sender is known.
func (s *APIServer) allowSender(w http.ResponseWriter, sender string) bool {
	if s.limiter == nil {
		return true
	}
	if id, err := types.ParseNodeID(sender); err == nil {
		sender = id.String()
	}
	if err := s.limiter.AllowParticipant(sender); err != nil {
		writeRateLimited(w, err)
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Health.Check(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Status != service.StatusServing {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Stats())
}

func (s *APIServer) handleBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Blocks())
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("node")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.Ledger.History())
		return
	}
	id, err := types.ParseNodeID(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Ledger.HistoryOf(id))
}

func (s *APIServer) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Pending())
}

func (s *APIServer) handleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Nodes())
}

func (s *APIServer) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	node, err := s.Ledger.Node(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *APIServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.Ledger.Balance(id)
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := s.Ledger.PendingBalance(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResp{ID: id, Balance: balance, Pending: pending})
}

func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterReq
	if !decodeBody(w, r, &req) {
		return
	}
	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		if opening, err = types.ParseAmount(req.OpeningBalance); err != nil {
			writeError(w, err)
			return
		}
	}
	id, err := types.ParseNodeID(req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Ledger.Register(id, opening); err != nil {
		writeError(w, err)
		return
	}
	node, err := s.Ledger.Node(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *APIServer) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Ledger.Deactivate(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferReq
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.allowSender(w, req.Sender) {
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	txs, err := s.Ledger.SubmitTransfer(types.NodeID(req.Sender), types.NodeID(req.Receiver), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, txs)
}

func (s *APIServer) handleGift(w http.ResponseWriter, r *http.Request) {
	var req TransferReq
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.allowSender(w, req.Sender) {
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := s.Ledger.SubmitGift(types.NodeID(req.Sender), types.NodeID(req.Receiver), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

func (s *APIServer) handleLevy(w http.ResponseWriter, r *http.Request) {
	var req LevyReq
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.allowSender(w, req.Sender) {
		return
	}
	tx, err := s.Ledger.SubmitLevy(types.NodeID(req.Sender), types.NodeID(req.Recipient))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

func (s *APIServer) handleMine(w http.ResponseWriter, r *http.Request) {
	var req MineReq
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.allowSender(w, req.Miner) {
		return
	}
	miner, err := types.ParseNodeID(req.Miner)
	if err != nil {
		writeError(w, err)
		return
	}
	difficulty := s.mineDifficulty
	if req.Difficulty != 0 {
		if req.Difficulty < 0 || req.Difficulty > int(block.MaxDifficulty) {
			writeError(w, zerrors.Errorf(zerrors.ErrCodeInvalidDifficulty, "difficulty %d outside 1..%d", req.Difficulty, block.MaxDifficulty))
			return
		}
		difficulty = block.Difficulty(req.Difficulty)
	}
	timeout := s.mineTimeout
	if req.TimeoutMs < 0 {
		writeJSON(w, http.StatusBadRequest, &zerrors.LedgerError{
			Code:    zerrors.ErrCodeBadRequest,
			Message: fmt.Sprintf("timeout_ms %d is negative", req.TimeoutMs),
		})
		return
	}
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if timeout > maxMineTimeout {
		timeout = maxMineTimeout
	}

	idx, err := s.Ledger.Mine(r.Context(), miner, difficulty, timeout)
	if err != nil {
		writeError(w, err)
		return
	}
	b, ok := s.Ledger.Block(idx)
	if !ok {
		writeError(w, fmt.Errorf("mined block %d not found", idx))
		return
	}
	writeJSON(w, http.StatusCreated, MineResp{
		Index:      b.Index,
		Hash:       b.Hash,
		Miner:      miner,
		Difficulty: b.Difficulty,
		TxCount:    len(b.Transactions),
	})
}

func (s *APIServer) handleTxStatus(w http.ResponseWriter, r *http.Request) {
	status := s.Tracker.Status(mux.Vars(r)["hash"])
	code := http.StatusOK
	if status.State == service.TxUnknown {
		code = http.StatusNotFound
	}
	writeJSON(w, code, status)
}

func pathID(r *http.Request) (types.NodeID, error) {
	return types.ParseNodeID(mux.Vars(r)["id"])
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	defer r.Body.Close()
	if err := jsonx.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, &zerrors.LedgerError{
			Code:    zerrors.ErrCodeBadRequest,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return false
	}
	return true
}

func writeRateLimited(w http.ResponseWriter, err error) {
	monitoring.RecordRejectedTx(monitoring.TxRateLimited)
	writeJSON(w, http.StatusTooManyRequests, &zerrors.LedgerError{
		Code:    zerrors.ErrCodeRateLimited,
		Message: err.Error(),
	})
}

func statusOf(code zerrors.ErrorCode) int {
	switch code {
	case zerrors.ErrCodeInvalidIdentifier, zerrors.ErrCodeInvalidAmount, zerrors.ErrCodeInvalidDifficulty:
		return http.StatusBadRequest
	case zerrors.ErrCodeUnknownParticipant:
		return http.StatusNotFound
	case zerrors.ErrCodeDuplicateParticipant:
		return http.StatusConflict
	case zerrors.ErrCodeParticipantInactive, zerrors.ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case zerrors.ErrCodeStaleCandidate:
		return http.StatusConflict
	case zerrors.ErrCodeMiningTimeout:
		return http.StatusGatewayTimeout
	case zerrors.ErrCodeMempoolFull, zerrors.ErrCodeMiningCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var le *zerrors.LedgerError
	if !errors.As(err, &le) {
		le = &zerrors.LedgerError{Code: zerrors.ErrCodeInternal, Message: err.Error()}
	}
	writeJSON(w, statusOf(le.Code), le)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Warn("API", "Failed to encode response:", err.Error())
	}
}
