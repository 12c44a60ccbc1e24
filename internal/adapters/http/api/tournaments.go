package api

import (
	"context"
	"net/http"

	"github.com/okian/tiebreak/internal/domain/types"
)

// TournamentsDependencies lists loaded tournaments.
type TournamentsDependencies interface {
	Tournaments(ctx context.Context) []types.TournamentSummary
}

// TournamentsHandler handles tournament listing requests.
type TournamentsHandler struct {
	deps TournamentsDependencies
}

// NewTournamentsHandler creates a new tournaments handler.
func NewTournamentsHandler(deps TournamentsDependencies) *TournamentsHandler {
	return &TournamentsHandler{deps: deps}
}

// HandleList handles GET /tournaments requests.
func (h *TournamentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Tournaments(r.Context()))
}
