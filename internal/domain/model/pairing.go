package model

// PlayerID identifies a player within one tournament.
type PlayerID int

// Opponent is the optional other side of a pairing. The zero value means
// no real opponent (a bye or an unpaired round).
type Opponent struct {
	ID    PlayerID
	Valid bool
}

// Against returns an opponent referring to a real player.
func Against(id PlayerID) Opponent {
	return Opponent{ID: id, Valid: true}
}

// NoOpponent returns the opponent of a bye.
func NoOpponent() Opponent {
	return Opponent{}
}

// Pairing is one player's record for one round.
type Pairing struct {
	Opponent Opponent
	Result   Result
	Color    Color
}

// IsBye reports whether the round had no real opponent.
func (p Pairing) IsBye() bool {
	return !p.Opponent.Valid
}

// Points returns the score the pairing awarded.
func (p Pairing) Points() Points {
	return p.Result.Points()
}
