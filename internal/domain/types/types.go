// Package types contains the standings shapes shared between layers.
package types

// Standing is one player's evaluated row before ranking.
type Standing struct {
	PlayerID  int       `json:"player_id"`
	Name      string    `json:"name"`
	MaxRound  int       `json:"max_round"`
	Points    float64   `json:"points"`
	TieBreaks []float64 `json:"tie_breaks"`
	// SortKey is Points followed by the oriented tie-breaks; larger ranks first.
	SortKey []float64 `json:"-"`
}

// Entry is a ranked standings row.
type Entry struct {
	Rank int `json:"rank"`
	Standing
}

// Named pairs tie-break values with their criterion names. Missing names
// are skipped.
func (s Standing) Named(names []string) map[string]float64 {
	out := make(map[string]float64, len(s.TieBreaks))
	for i, v := range s.TieBreaks {
		if i < len(names) {
			out[names[i]] = v
		}
	}
	return out
}

// TournamentSummary describes a loaded tournament.
type TournamentSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	PairingSystem string   `json:"pairing_system"`
	CurrentRound  int      `json:"current_round"`
	Players       int      `json:"players"`
	TieBreaks     []string `json:"tie_breaks"`
}

// RefreshTicket acknowledges an asynchronous standings refresh.
type RefreshTicket struct {
	RequestID    string `json:"request_id"`
	TournamentID string `json:"tournament_id"`
	MaxRound     int    `json:"max_round"`
	Jobs         int    `json:"jobs"`
}
