package model

// Job asks for one player's standing row to be recomputed.
type Job struct {
	RequestID    string
	TournamentID string
	PlayerID     PlayerID
	MaxRound     int
}
