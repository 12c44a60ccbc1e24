// Package importer reads tournament files into frozen domain tournaments.
//
// A file looks like:
//
//	id = "club-2024"
//	name = "Club Championship"
//	pairing_system = "berger"
//	current_round = 3
//
//	[[players]]
//	id = 1
//	name = "Alice"
//	rating = 1850
//
//	  [[players.rounds]]
//	  opponent = 2
//	  result = "win"
//	  color = "white"
//
//	[[tie_breaks]]
//	name = "buchholz"
//
// Rounds are listed in order. A round without an opponent is a bye. The
// tie_breaks tables are optional; without them the service default order
// applies.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/okian/tiebreak/internal/domain/model"
	"github.com/okian/tiebreak/pkg/logger"
)

type fileRound struct {
	Opponent *int   `toml:"opponent"`
	Result   string `toml:"result"`
	Color    string `toml:"color"`
}

type filePlayer struct {
	ID     int         `toml:"id"`
	Name   string      `toml:"name"`
	Rating int         `toml:"rating"`
	Rounds []fileRound `toml:"rounds"`
}

type fileTieBreak struct {
	Name          string `toml:"name"`
	Cut           int    `toml:"cut"`
	LowerIsBetter bool   `toml:"lower_is_better"`
}

type fileTournament struct {
	ID            string         `toml:"id"`
	Name          string         `toml:"name"`
	PairingSystem string         `toml:"pairing_system"`
	CurrentRound  int            `toml:"current_round"`
	Players       []filePlayer   `toml:"players"`
	TieBreaks     []fileTieBreak `toml:"tie_breaks"`
}

// Option configures decoding.
type Option func(*options)

type options struct {
	strict    bool
	defaultID string
	log       logger.Logger
}

// WithStrictKeys makes unknown keys an error. It is on by default; when off,
// unknown keys are logged and ignored.
func WithStrictKeys(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithDefaultID sets the tournament id used when the file has none.
func WithDefaultID(id string) Option {
	return func(o *options) { o.defaultID = id }
}

// WithLogger sets the logger used to report ignored keys.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{strict: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DecodeFile reads one tournament file. The file name without extension is
// the default tournament id.
func DecodeFile(ctx context.Context, path string, opts ...Option) (*model.Tournament, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := Decode(ctx, f, append([]Option{WithDefaultID(base)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Decode reads one tournament from r.
func Decode(ctx context.Context, r io.Reader, opts ...Option) (*model.Tournament, error) {
	o := newOptions(opts)

	var raw fileTournament
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTournament, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		if o.strict {
			return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidTournament, strings.Join(keys, ", "))
		}
		if o.log == nil {
			o.log = logger.Named("importer")
		}
		o.log.Warn(ctx, "ignoring unknown tournament keys", logger.String("keys", strings.Join(keys, ",")))
	}

	return build(raw, o)
}

func build(raw fileTournament, o *options) (*model.Tournament, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = o.defaultID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing tournament id", ErrInvalidTournament)
	}

	system, err := model.ParsePairingSystem(raw.PairingSystem)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTournament, err)
	}

	known := make(map[int]struct{}, len(raw.Players))
	for _, fp := range raw.Players {
		if fp.ID <= 0 {
			return nil, fmt.Errorf("%w: player id must be positive, got %d", ErrInvalidTournament, fp.ID)
		}
		if _, dup := known[fp.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate player id %d", ErrInvalidTournament, fp.ID)
		}
		known[fp.ID] = struct{}{}
	}

	players := make([]*model.Player, 0, len(raw.Players))
	played := 0
	for _, fp := range raw.Players {
		pairings := make([]model.Pairing, 0, len(fp.Rounds))
		for i, fr := range fp.Rounds {
			pairing, err := buildPairing(fp.ID, fr, known)
			if err != nil {
				return nil, fmt.Errorf("%w: player %d round %d: %w", ErrInvalidTournament, fp.ID, i+1, err)
			}
			pairings = append(pairings, pairing)
		}
		played = max(played, len(pairings))
		players = append(players, model.NewPlayer(model.PlayerID(fp.ID), fp.Name, fp.Rating, pairings))
	}

	current := raw.CurrentRound
	switch {
	case current < 0:
		return nil, fmt.Errorf("%w: current_round must not be negative, got %d", ErrInvalidTournament, current)
	case current == 0:
		// Absent: the next round after the last one recorded.
		current = played + 1
	}

	rules := make([]model.TieBreakRule, 0, len(raw.TieBreaks))
	for i, tb := range raw.TieBreaks {
		name := strings.TrimSpace(tb.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tie_breaks entry %d has no name", ErrInvalidTournament, i+1)
		}
		rules = append(rules, model.TieBreakRule{Name: name, Cut: tb.Cut, LowerIsBetter: tb.LowerIsBetter})
	}

	return model.NewTournament(id, raw.Name, system, current, players, model.WithTieBreaks(rules)), nil
}

func buildPairing(self int, fr fileRound, known map[int]struct{}) (model.Pairing, error) {
	result, err := model.ParseResult(fr.Result)
	if err != nil {
		return model.Pairing{}, err
	}
	color, err := model.ParseColor(fr.Color)
	if err != nil {
		return model.Pairing{}, err
	}

	opponent := model.NoOpponent()
	if fr.Opponent != nil {
		id := *fr.Opponent
		if id == self {
			return model.Pairing{}, errors.New("paired against itself")
		}
		if _, ok := known[id]; !ok {
			return model.Pairing{}, fmt.Errorf("unknown opponent %d", id)
		}
		opponent = model.Against(model.PlayerID(id))
	}

	return model.Pairing{Opponent: opponent, Result: result, Color: color}, nil
}

// LoadDir decodes every *.toml file in dir, ordered by file name. Two files
// declaring the same tournament id are rejected.
func LoadDir(ctx context.Context, dir string, opts ...Option) ([]*model.Tournament, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	out := make([]*model.Tournament, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := DecodeFile(ctx, path, opts...)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[t.ID()]; dup {
			return nil, fmt.Errorf("%w: tournament id %q declared by %s and %s", ErrInvalidTournament, t.ID(), prev, path)
		}
		seen[t.ID()] = path
		out = append(out, t)
	}
	return out, nil
}
