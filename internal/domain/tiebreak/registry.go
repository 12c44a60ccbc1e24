package tiebreak

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/tiebreak/internal/domain/model"
)

// Catalog names.
const (
	NameWins                 = "wins"
	NameGamesWon             = "games_won"
	NameGamesPlayedWithBlack = "games_played_with_black"
	NameGamesWonWithBlack    = "games_won_with_black"
	NameProgressiveScores    = "progressive_scores"
	NameGamesElectedToPlay   = "games_elected_to_play"
	NameBuchholz             = "buchholz"
)

// Definition describes a registered criterion and the parameters and
// pairing systems it is defined for.
type Definition struct {
	Fn Criterion
	// Cuts reports whether the criterion takes a cut at all.
	Cuts bool
	// MaxCut is the largest cut the criterion implements when Cuts is set.
	MaxCut int
	// Systems lists the pairing systems the criterion is defined for. Empty
	// means every system.
	Systems []model.PairingSystem
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithCriterion adds or replaces a named criterion that takes no parameters
// and is defined for every pairing system.
func WithCriterion(name string, fn Criterion) Option {
	return WithDefinition(name, Definition{Fn: fn})
}

// WithDefinition adds or replaces a named criterion with its parameter and
// pairing system domain.
func WithDefinition(name string, d Definition) Option {
	return func(r *Registry) {
		name = normalize(name)
		if name != "" && d.Fn != nil {
			r.criteria[name] = d
		}
	}
}

// Registry maps criterion names to functions. It is read-only once built.
type Registry struct {
	criteria map[string]Definition
}

// NewRegistry creates a registry holding the Handbook catalog plus any
// criteria added through options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		criteria: map[string]Definition{
			NameWins:                 {Fn: Wins},
			NameGamesWon:             {Fn: GamesWon},
			NameGamesPlayedWithBlack: {Fn: GamesPlayedWithBlack},
			NameGamesWonWithBlack:    {Fn: GamesWonWithBlack},
			NameProgressiveScores:    {Fn: ProgressiveScores},
			NameGamesElectedToPlay:   {Fn: GamesElectedToPlay},
			// Only the uncut round-robin form is implemented.
			NameBuchholz: {
				Fn:      Buchholz,
				Cuts:    true,
				MaxCut:  0,
				Systems: []model.PairingSystem{model.PairingSystemBerger},
			},
		},
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Lookup returns the criterion registered under name.
func (r *Registry) Lookup(name string) (Criterion, bool) {
	d, ok := r.criteria[normalize(name)]
	return d.Fn, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.criteria))
	for name := range r.criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec is one configured entry of a tournament's tie-break order.
type Spec struct {
	Name   string
	Params Params
	// LowerIsBetter flips the ranking direction of this criterion.
	LowerIsBetter bool
}

// SpecsFromRules converts tie-break rules carried by a tournament.
func SpecsFromRules(rules []model.TieBreakRule) []Spec {
	specs := make([]Spec, 0, len(rules))
	for _, rule := range rules {
		specs = append(specs, Spec{
			Name:          rule.Name,
			Params:        Params{Cut: rule.Cut},
			LowerIsBetter: rule.LowerIsBetter,
		})
	}
	return specs
}

// Compile checks specs against the registry and returns an Evaluator that
// applies them in order. Unknown names, out-of-domain parameters and cuts a
// criterion does not implement are rejected here, before any standings are
// computed.
func (r *Registry) Compile(specs []Spec) (*Evaluator, error) {
	steps := make([]step, 0, len(specs))
	for i, s := range specs {
		name := normalize(s.Name)
		d, ok := r.criteria[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownCriterion, s.Name, i+1)
		}
		if err := checkParams(name, d, s.Params); err != nil {
			return nil, err
		}
		steps = append(steps, step{
			name:          name,
			fn:            d.Fn,
			params:        s.Params,
			lowerIsBetter: s.LowerIsBetter,
			systems:       d.Systems,
		})
	}
	return &Evaluator{steps: steps}, nil
}

func checkParams(name string, d Definition, p Params) error {
	switch {
	case p.Cut < 0:
		return fmt.Errorf("%w: %s cut must not be negative, got %d", ErrInvalidParameter, name, p.Cut)
	case !d.Cuts && p.Cut != 0:
		return fmt.Errorf("%w: %s takes no cut, got %d", ErrInvalidParameter, name, p.Cut)
	case d.Cuts && p.Cut > d.MaxCut:
		return fmt.Errorf("%w: %s cut %d", ErrUnsupportedVariant, name, p.Cut)
	}
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
