package model

// Player is a participant and its round-by-round history.
type Player struct {
	id       PlayerID
	name     string
	rating   int
	pairings []Pairing // pairings[i] is round i+1
}

// NewPlayer builds a player whose rounds are numbered from 1 in the order
// the pairings are given. The slice is copied.
func NewPlayer(id PlayerID, name string, rating int, pairings []Pairing) *Player {
	ps := make([]Pairing, len(pairings))
	copy(ps, pairings)
	return &Player{
		id:       id,
		name:     name,
		rating:   rating,
		pairings: ps,
	}
}

// ID returns the player identifier.
func (p *Player) ID() PlayerID { return p.id }

// Name returns the display name.
func (p *Player) Name() string { return p.name }

// Rating returns the rating recorded at registration.
func (p *Player) Rating() int { return p.rating }

// Rounds returns the number of rounds recorded for the player.
func (p *Player) Rounds() int { return len(p.pairings) }

// Pairing returns the pairing of the given 1-based round.
func (p *Player) Pairing(round int) (Pairing, bool) {
	if round < 1 || round > len(p.pairings) {
		return Pairing{}, false
	}
	return p.pairings[round-1], true
}

// Before calls fn for every round strictly lower than maxRound, in order.
func (p *Player) Before(maxRound int, fn func(round int, pairing Pairing)) {
	for i, pairing := range p.pairings {
		round := i + 1
		if round >= maxRound {
			return
		}
		fn(round, pairing)
	}
}

// PointsBeforeRound sums the points of all rounds strictly lower than round.
func (p *Player) PointsBeforeRound(round int) Points {
	var total Points
	p.Before(round, func(_ int, pairing Pairing) {
		total += pairing.Points()
	})
	return total
}

// Points returns the score over every recorded round.
func (p *Player) Points() Points {
	return p.PointsBeforeRound(len(p.pairings) + 1)
}
