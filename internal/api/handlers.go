package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"feeScope/internal/model"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Handler handles HTTP requests for the API.
type Handler struct {
	store  EventStore
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(store EventStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EventsResponse is the payload of GET /v1/events.
type EventsResponse struct {
	Integrator string           `json:"integrator"`
	Count      int              `json:"count"`
	Events     []model.FeeEvent `json:"events"`
}

// GetEvents lists stored fee events for one integrator address, ordered by
// block number then log index. The query address may be any casing.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	integrator := r.URL.Query().Get("integrator")
	if integrator == "" {
		respondError(w, http.StatusBadRequest, "integrator query parameter is required")
		return
	}
	if !common.IsHexAddress(integrator) {
		respondError(w, http.StatusBadRequest, "invalid integrator address")
		return
	}

	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	normalized := model.NormalizeHex(integrator)
	events, err := h.store.EventsByIntegrator(r.Context(), normalized, limit, offset)
	if err != nil {
		h.logger.Error("query events failed", zap.String("integrator", normalized), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}

	respondJSON(w, http.StatusOK, EventsResponse{
		Integrator: normalized,
		Count:      len(events),
		Events:     events,
	})
}

// StatusResponse is the payload of GET /v1/status.
type StatusResponse struct {
	Watermarks []model.Watermark `json:"watermarks"`
}

// GetStatus reports the per-chain watermarks.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	marks, err := h.store.Watermarks(r.Context())
	if err != nil {
		h.logger.Error("query watermarks failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Watermarks: marks})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
