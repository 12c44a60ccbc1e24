package tiebreak

import (
	"fmt"
	"slices"

	"github.com/okian/tiebreak/internal/domain/model"
)

// Vector holds one value per configured criterion, in configuration order.
type Vector []float64

type step struct {
	name          string
	fn            Criterion
	params        Params
	lowerIsBetter bool
	systems       []model.PairingSystem
}

// Evaluator applies a compiled tie-break order. It holds no mutable state
// and may be shared between goroutines.
type Evaluator struct {
	steps []step
}

// Names returns the configured criterion names in order.
func (e *Evaluator) Names() []string {
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.name
	}
	return names
}

// Len returns the number of configured criteria.
func (e *Evaluator) Len() int { return len(e.steps) }

// Supports reports ErrUnsupportedVariant for the first criterion that is not
// defined for the given pairing system.
func (e *Evaluator) Supports(system model.PairingSystem) error {
	for _, s := range e.steps {
		if len(s.systems) > 0 && !slices.Contains(s.systems, system) {
			return fmt.Errorf("%w: %s for %s pairing", ErrUnsupportedVariant, s.name, system)
		}
	}
	return nil
}

// Evaluate computes the player's tie-break vector. The first failing
// criterion aborts the evaluation and its error is returned wrapped with
// the criterion name.
func (e *Evaluator) Evaluate(p *model.Player, t *model.Tournament, maxRound int) (Vector, error) {
	out := make(Vector, len(e.steps))
	for i, s := range e.steps {
		v, err := s.fn(p, t, maxRound, s.params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		out[i] = v
	}
	return out, nil
}

// SortKey returns the primary score followed by the vector, with every
// lower-is-better criterion negated so that larger keys always rank first.
func (e *Evaluator) SortKey(points float64, v Vector) []float64 {
	key := make([]float64, 0, len(v)+1)
	key = append(key, points)
	for i, value := range v {
		if i < len(e.steps) && e.steps[i].lowerIsBetter {
			value = -value
		}
		key = append(key, value)
	}
	return key
}

// CompareKeys compares two sort keys lexicographically. It returns a
// positive number when a ranks before b, negative when after, zero on a tie.
// A shorter key that is a prefix of the other ranks after it.
func CompareKeys(a, b []float64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] > b[i]:
			return 1
		case a[i] < b[i]:
			return -1
		}
	}
	return len(a) - len(b)
}
