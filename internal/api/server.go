package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zkUSD-Protocol/services/internal/pipeline"
	"github.com/zkUSD-Protocol/services/internal/store"
)

// HealthProvider returns the engine health snapshot served on /healthz.
type HealthProvider interface {
	Snapshot() pipeline.HealthSnapshot
}

// Server is the read-only query API: computed proofs, vault state, and the
// reconciliation checkpoint. It never writes; all mutation goes through the
// worker.
type Server struct {
	proofs      store.ProofRepository
	vaults      store.VaultRepository
	checkpoints store.CheckpointRepository
	health      HealthProvider
	logger      *slog.Logger
}

// NewServer creates the query API server.
func NewServer(
	proofs store.ProofRepository,
	vaults store.VaultRepository,
	checkpoints store.CheckpointRepository,
	logger *slog.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		proofs:      proofs,
		vaults:      vaults,
		checkpoints: checkpoints,
		logger:      logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional dependencies for the API server.
type ServerOption func(*Server)

// WithHealthProvider sets the health provider served on /healthz.
func WithHealthProvider(hp HealthProvider) ServerOption {
	return func(s *Server) { s.health = hp }
}

// Handler returns the HTTP handler for the query API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/proofs/latest", s.handleLatestProof)
	mux.HandleFunc("GET /v1/proofs/{height}", s.handleProofByHeight)
	mux.HandleFunc("GET /v1/vaults/{address}", s.handleVault)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type proofResponse struct {
	BlockHeight uint32          `json:"block_height"`
	Proof       json.RawMessage `json:"proof"`
	Price       string          `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (s *Server) handleLatestProof(w http.ResponseWriter, r *http.Request) {
	proof, err := s.proofs.Latest(r.Context())
	if err != nil {
		s.logger.Error("latest proof lookup failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if proof == nil {
		http.Error(w, `{"error":"no proofs computed yet"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, proofResponse{
		BlockHeight: proof.BlockHeight,
		Proof:       json.RawMessage(proof.Proof),
		Price:       proof.Price,
		CreatedAt:   proof.CreatedAt,
	})
}

func (s *Server) handleProofByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(r.PathValue("height"), 10, 32)
	if err != nil {
		http.Error(w, `{"error":"height must be a positive integer"}`, http.StatusBadRequest)
		return
	}

	proof, err := s.proofs.FindByHeight(r.Context(), uint32(height))
	if err != nil {
		s.logger.Error("proof lookup failed", "height", height, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if proof == nil {
		http.Error(w, `{"error":"no proof for this height"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, proofResponse{
		BlockHeight: proof.BlockHeight,
		Proof:       json.RawMessage(proof.Proof),
		Price:       proof.Price,
		CreatedAt:   proof.CreatedAt,
	})
}

type vaultResponse struct {
	Address          string    `json:"address"`
	Owner            string    `json:"owner"`
	CollateralAmount string    `json:"collateral_amount"`
	DebtAmount       string    `json:"debt_amount"`
	LastUpdateBlock  uint32    `json:"last_update_block"`
	LastUpdateAt     time.Time `json:"last_update_at"`
	LatestTxHash     string    `json:"latest_transaction_hash"`
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	vault, err := s.vaults.FindByAddress(r.Context(), address)
	if err != nil {
		s.logger.Error("vault lookup failed", "address", address, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if vault == nil {
		http.Error(w, `{"error":"vault not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, vaultResponse{
		Address:          vault.Address,
		Owner:            vault.Owner,
		CollateralAmount: vault.CollateralAmount,
		DebtAmount:       vault.DebtAmount,
		LastUpdateBlock:  vault.LastUpdateBlock,
		LastUpdateAt:     vault.LastUpdateAt,
		LatestTxHash:     vault.LatestTxHash,
	})
}

type statusResponse struct {
	WatermarkHeight    uint32     `json:"watermark_height"`
	LastProcessedBlock uint32     `json:"last_processed_block"`
	StartBlock         uint32     `json:"start_block"`
	InProgress         bool       `json:"in_progress"`
	LastProcessedAt    *time.Time `json:"last_processed_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
	VaultCount         int64      `json:"vault_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cp, err := s.checkpoints.Get(r.Context())
	if err != nil {
		s.logger.Error("checkpoint lookup failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if cp == nil {
		http.Error(w, `{"error":"checkpoint not initialized"}`, http.StatusServiceUnavailable)
		return
	}

	count, err := s.vaults.Count(r.Context())
	if err != nil {
		s.logger.Error("vault count failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		WatermarkHeight:    cp.FromBlock(),
		LastProcessedBlock: cp.LastProcessedBlock,
		StartBlock:         cp.StartBlock,
		InProgress:         cp.InProgress,
		LastProcessedAt:    cp.LastProcessedAt,
		VaultCount:         count,
	}
	if cp.LastError != nil {
		resp.LastError = *cp.LastError
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		http.Error(w, `{"error":"health provider not available"}`, http.StatusServiceUnavailable)
		return
	}

	snap := s.health.Snapshot()
	status := http.StatusOK
	if snap.Status == string(pipeline.HealthStatusUnhealthy) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}
