package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, tournamentID string, maxRound, playerID int) (Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /tournaments/{id}/players/{player}?round=N.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"

	player, err := strconv.Atoi(r.PathValue("player"))
	if err != nil {
		writeDomainError(w, op, fmt.Errorf("%w: player must be an integer id", ErrBadRequest))
		return
	}
	round, err := intQuery(r, "round", 0)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	entry, err := h.deps.Rank(r.Context(), r.PathValue("id"), round, player)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
