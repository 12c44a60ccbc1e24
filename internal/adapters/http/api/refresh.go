package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/tiebreak/internal/domain/types"
)

// RefreshDependencies queues asynchronous standings recomputation.
type RefreshDependencies interface {
	Refresh(ctx context.Context, tournamentID string, maxRound int, requestID string) (types.RefreshTicket, error)
}

// RefreshHandler handles refresh requests.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// refreshRequest is the optional body of POST /tournaments/{id}/refresh.
type refreshRequest struct {
	RequestID string `json:"request_id"`
	MaxRound  int    `json:"max_round"`
}

func (r refreshRequest) validate() error {
	if r.MaxRound < 0 {
		return fmt.Errorf("max_round must not be negative, got %d", r.MaxRound)
	}
	return nil
}

// HandlePostRefresh handles POST /tournaments/{id}/refresh requests.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeDomainError(w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeDomainError(w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	ticket, err := h.deps.Refresh(r.Context(), r.PathValue("id"), req.MaxRound, req.RequestID)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ticket)
}
