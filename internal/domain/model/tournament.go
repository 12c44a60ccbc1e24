package model

import (
	"fmt"
	"sort"
	"strings"
)

// PairingSystem is the method used to build rounds.
type PairingSystem int

const (
	PairingSystemUnknown PairingSystem = iota
	// PairingSystemBerger is a round robin with a schedule fixed in advance.
	PairingSystemBerger
	// PairingSystemSwiss pairs each round from the standings so far.
	PairingSystemSwiss
)

// String returns the canonical file representation of the system.
func (s PairingSystem) String() string {
	switch s {
	case PairingSystemUnknown:
		return "unknown"
	case PairingSystemBerger:
		return "berger"
	case PairingSystemSwiss:
		return "swiss"
	}
	return fmt.Sprintf("pairing(%d)", int(s))
}

// ParsePairingSystem converts a tournament file token into a PairingSystem.
func ParsePairingSystem(s string) (PairingSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "berger", "round_robin", "round-robin":
		return PairingSystemBerger, nil
	case "swiss", "swiss_dutch", "dutch":
		return PairingSystemSwiss, nil
	}
	return PairingSystemUnknown, fmt.Errorf("unknown pairing system %q", s)
}

// TieBreakRule is one entry of a tournament's own tie-break order, as
// written in its file.
type TieBreakRule struct {
	Name          string
	Cut           int
	LowerIsBetter bool
}

// Tournament is the read-only state the criteria evaluate against.
type Tournament struct {
	id           string
	name         string
	system       PairingSystem
	currentRound int
	players      map[PlayerID]*Player
	order        []PlayerID
	tieBreaks    []TieBreakRule
}

// TournamentOption configures optional tournament data.
type TournamentOption func(*Tournament)

// WithTieBreaks sets the tournament's own tie-break order.
func WithTieBreaks(rules []TieBreakRule) TournamentOption {
	return func(t *Tournament) {
		t.tieBreaks = append([]TieBreakRule(nil), rules...)
	}
}

// NewTournament builds a tournament from fully populated players. When two
// players share an id the last one wins; loaders are expected to reject that.
func NewTournament(id, name string, system PairingSystem, currentRound int, players []*Player, opts ...TournamentOption) *Tournament {
	t := &Tournament{
		id:           id,
		name:         name,
		system:       system,
		currentRound: currentRound,
		players:      make(map[PlayerID]*Player, len(players)),
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, p := range players {
		if _, dup := t.players[p.ID()]; !dup {
			t.order = append(t.order, p.ID())
		}
		t.players[p.ID()] = p
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t
}

// ID returns the tournament identifier.
func (t *Tournament) ID() string { return t.id }

// Name returns the display name.
func (t *Tournament) Name() string { return t.name }

// PairingSystem returns the pairing system in use.
func (t *Tournament) PairingSystem() PairingSystem { return t.system }

// CurrentRound returns the round the tournament is at.
func (t *Tournament) CurrentRound() int { return t.currentRound }

// Player looks up a player by id.
func (t *Tournament) Player(id PlayerID) (*Player, bool) {
	p, ok := t.players[id]
	return p, ok
}

// Players returns all players ordered by id.
func (t *Tournament) Players() []*Player {
	out := make([]*Player, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.players[id])
	}
	return out
}

// Len returns the number of players.
func (t *Tournament) Len() int { return len(t.order) }

// TieBreaks returns the tournament's own tie-break order, or nil when the
// service default applies.
func (t *Tournament) TieBreaks() []TieBreakRule {
	if len(t.tieBreaks) == 0 {
		return nil
	}
	return append([]TieBreakRule(nil), t.tieBreaks...)
}
