// Package tiebreak computes tie-break criteria from the FIDE Handbook C.07
// over a player's recorded pairings.
//
// Each criterion only reads rounds strictly lower than maxRound, which lets
// standings be computed as of any point in the event.
package tiebreak

import (
	"fmt"

	"github.com/okian/tiebreak/internal/domain/model"
)

// Params holds criterion-specific configuration.
type Params struct {
	// Cut is the number of extreme opponent scores a Buchholz variant discards.
	Cut int `json:"cut,omitempty"`
}

// Criterion computes one tie-break value. Implementations must be pure.
type Criterion func(p *model.Player, t *model.Tournament, maxRound int, params Params) (float64, error)

// count returns the number of rounds before maxRound matching keep.
func count(p *model.Player, maxRound int, keep func(model.Pairing) bool) float64 {
	n := 0
	p.Before(maxRound, func(_ int, pairing model.Pairing) {
		if keep(pairing) {
			n++
		}
	})
	return float64(n)
}

// Wins counts rounds that scored as many points as a win, played or not.
// Handbook C.07.7.1.
func Wins(p *model.Player, _ *model.Tournament, maxRound int, _ Params) (float64, error) {
	return count(p, maxRound, func(pairing model.Pairing) bool {
		return pairing.Points() == model.WinPoints
	}), nil
}

// GamesWon counts games won over the board. Handbook C.07.7.2.
func GamesWon(p *model.Player, _ *model.Tournament, maxRound int, _ Params) (float64, error) {
	return count(p, maxRound, func(pairing model.Pairing) bool {
		return pairing.Result == model.ResultGain && !pairing.IsBye()
	}), nil
}

// GamesPlayedWithBlack counts games played over the board with black.
// Handbook C.07.7.3.
func GamesPlayedWithBlack(p *model.Player, _ *model.Tournament, maxRound int, _ Params) (float64, error) {
	return count(p, maxRound, func(pairing model.Pairing) bool {
		return !pairing.IsBye() && pairing.Result.Played() && pairing.Color == model.ColorBlack
	}), nil
}

// GamesWonWithBlack counts games won over the board with black.
// Handbook C.07.7.4.
func GamesWonWithBlack(p *model.Player, _ *model.Tournament, maxRound int, _ Params) (float64, error) {
	return count(p, maxRound, func(pairing model.Pairing) bool {
		return pairing.Result == model.ResultGain && pairing.Color == model.ColorBlack
	}), nil
}

// ProgressiveScores sums the player's cumulative score after each round.
// Handbook C.07.7.5.
//
// A round r contributes its points once for every later cumulative total
// up to maxRound-1, so the sum is weighted by (maxRound - r).
func ProgressiveScores(p *model.Player, _ *model.Tournament, maxRound int, _ Params) (float64, error) {
	if maxRound < 2 {
		return 0, nil
	}
	var total float64
	p.Before(maxRound, func(round int, pairing model.Pairing) {
		total += float64(maxRound-round) * pairing.Points()
	})
	return total, nil
}

// GamesElectedToPlay counts rounds minus half-point byes, zero-point byes
// and forfeit losses. Handbook C.07.7.6.
func GamesElectedToPlay(p *model.Player, _ *model.Tournament, maxRound int, _ Params) (float64, error) {
	return count(p, maxRound, func(pairing model.Pairing) bool {
		if pairing.IsBye() {
			return false
		}
		switch pairing.Result {
		case model.ResultForfeitLoss, model.ResultDoubleForfeit, model.ResultNotPaired:
			return false
		case model.ResultGain, model.ResultDrawOrHPB, model.ResultLoss,
			model.ResultForfeitGain, model.ResultPairingAllocatedBye:
			return true
		}
		return false
	}), nil
}

// Buchholz sums the scores of the player's opponents. Handbook C.07.8.1.
//
// Only the round-robin form is defined here: every opponent's score is
// taken before the tournament's current round. Cuts and Swiss tournaments
// fail with ErrUnsupportedVariant.
func Buchholz(p *model.Player, t *model.Tournament, maxRound int, params Params) (float64, error) {
	if params.Cut < 0 {
		return 0, fmt.Errorf("%w: buchholz cut must not be negative, got %d", ErrInvalidParameter, params.Cut)
	}
	if params.Cut > 0 {
		return 0, fmt.Errorf("%w: buchholz cut %d", ErrUnsupportedVariant, params.Cut)
	}
	if t.PairingSystem() != model.PairingSystemBerger {
		return 0, fmt.Errorf("%w: buchholz for %s pairing", ErrUnsupportedVariant, t.PairingSystem())
	}
	current := t.CurrentRound()
	var total float64
	p.Before(maxRound, func(_ int, pairing model.Pairing) {
		if pairing.IsBye() {
			return
		}
		// A dangling opponent is an upstream data fault; it adds nothing.
		if opponent, ok := t.Player(pairing.Opponent.ID); ok {
			total += opponent.PointsBeforeRound(current)
		}
	})
	return total, nil
}
