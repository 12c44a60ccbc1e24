package api

import (
	"context"
	"fmt"
	"net/http"
)

// StandingsDependencies defines the interface for standings reads.
type StandingsDependencies interface {
	Standings(ctx context.Context, tournamentID string, maxRound, limit int) ([]Entry, error)
}

// StandingsHandler handles standings requests.
type StandingsHandler struct {
	deps     StandingsDependencies
	maxLimit int
}

// NewStandingsHandler creates a new standings handler. maxLimit is also the
// default when the request has no limit.
func NewStandingsHandler(deps StandingsDependencies, maxLimit int) *StandingsHandler {
	return &StandingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetStandings handles GET /tournaments/{id}/standings?round=N&limit=M.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"

	round, err := intQuery(r, "round", 0)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	limit, err := intQuery(r, "limit", h.maxLimit)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if limit < 1 {
		writeDomainError(w, op, fmt.Errorf("%w: limit must be at least 1", ErrBadRequest))
		return
	}
	if limit > h.maxLimit {
		writeDomainError(w, op, fmt.Errorf("%w: %d > %d", ErrLimitExceeded, limit, h.maxLimit))
		return
	}

	entries, err := h.deps.Standings(r.Context(), r.PathValue("id"), round, limit)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
