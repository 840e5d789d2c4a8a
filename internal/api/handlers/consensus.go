package handlers

import (
	"net/http"

	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/service"
)

// ConsensusHandler runs the cross-validation engine over caller-supplied
// observations. The engine itself is pure; the handler fetches the current
// config and passes it in, so callers may also pin an explicit config for
// previewing rule changes.
type ConsensusHandler struct {
	crossval *service.CrossValidationService
}

func NewConsensusHandler(crossval *service.CrossValidationService) *ConsensusHandler {
	return &ConsensusHandler{crossval: crossval}
}

type consensusRequest struct {
	Ticker       string                    `json:"ticker"`
	Observations []domain.FieldObservation `json:"observations" validate:"required,min=1,dive"`
	// Config optionally overrides the stored engine config for this one
	// computation. Nothing is persisted either way.
	Config *domain.CrossValidationConfig `json:"config"`
}

type consensusResponse struct {
	Ticker string                  `json:"ticker,omitempty"`
	Fields []domain.FieldConsensus `json:"fields"`
}

func (h *ConsensusHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req consensusRequest
	if !decodeValid(w, r, &req) {
		return
	}

	cfg := req.Config
	if cfg == nil {
		stored, err := h.crossval.Get(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load cross-validation config")
			return
		}
		cfg = stored
	}

	fields := service.ComputeConsensus(req.Observations, *cfg)
	writeJSON(w, http.StatusOK, consensusResponse{Ticker: req.Ticker, Fields: fields})
}
