// Package model contains the tournament domain passed between layers.
//
// Every value in this package is built once by the loading layer and never
// mutated afterwards, so it is safe to read from many goroutines.
package model

import (
	"fmt"
	"strings"
)

// Points is a score amount; half points are the smallest unit in chess.
type Points = float64

// Point values awarded per outcome.
const (
	WinPoints  Points = 1
	DrawPoints Points = 0.5
	ZeroPoints Points = 0
)

// Result is the outcome of one round for one player.
//
// The set is closed: switches over Result are expected to list every
// variant so a new outcome cannot silently fall into a default branch.
type Result int

const (
	// ResultGain is a game won over the board.
	ResultGain Result = iota + 1
	// ResultDrawOrHPB is a drawn game or a half-point bye.
	ResultDrawOrHPB
	// ResultLoss is a game lost over the board.
	ResultLoss
	// ResultForfeitLoss is a scheduled game lost without playing.
	ResultForfeitLoss
	// ResultDoubleForfeit is a scheduled game neither player contested.
	ResultDoubleForfeit
	// ResultNotPaired is a round without pairing (zero-point bye).
	ResultNotPaired
	// ResultForfeitGain is a scheduled game won because the opponent did not play.
	ResultForfeitGain
	// ResultPairingAllocatedBye is a full-point bye given by the pairing system.
	ResultPairingAllocatedBye
)

// Points returns the score awarded for the result.
func (r Result) Points() Points {
	switch r {
	case ResultGain, ResultForfeitGain, ResultPairingAllocatedBye:
		return WinPoints
	case ResultDrawOrHPB:
		return DrawPoints
	case ResultLoss, ResultForfeitLoss, ResultDoubleForfeit, ResultNotPaired:
		return ZeroPoints
	}
	return ZeroPoints
}

// Played reports whether the result comes from a game contested over the board.
func (r Result) Played() bool {
	switch r {
	case ResultGain, ResultDrawOrHPB, ResultLoss:
		return true
	case ResultForfeitLoss, ResultDoubleForfeit, ResultNotPaired, ResultForfeitGain, ResultPairingAllocatedBye:
		return false
	}
	return false
}

// String returns the canonical file representation of the result.
func (r Result) String() string {
	switch r {
	case ResultGain:
		return "win"
	case ResultDrawOrHPB:
		return "draw"
	case ResultLoss:
		return "loss"
	case ResultForfeitLoss:
		return "forfeit_loss"
	case ResultDoubleForfeit:
		return "double_forfeit"
	case ResultNotPaired:
		return "not_paired"
	case ResultForfeitGain:
		return "forfeit_win"
	case ResultPairingAllocatedBye:
		return "bye"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// ParseResult converts a tournament file token into a Result.
func ParseResult(s string) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "gain", "1":
		return ResultGain, nil
	case "draw", "half_point_bye", "hpb", "=":
		return ResultDrawOrHPB, nil
	case "loss", "0":
		return ResultLoss, nil
	case "forfeit_loss", "-":
		return ResultForfeitLoss, nil
	case "double_forfeit", "--":
		return ResultDoubleForfeit, nil
	case "not_paired", "zero_point_bye", "":
		return ResultNotPaired, nil
	case "forfeit_win", "forfeit_gain", "+":
		return ResultForfeitGain, nil
	case "bye", "pab", "full_point_bye":
		return ResultPairingAllocatedBye, nil
	}
	return 0, fmt.Errorf("unknown result %q", s)
}

// Color is the side a player had in a round.
type Color int

const (
	// ColorNone is used for byes and unplayed rounds.
	ColorNone Color = iota
	ColorWhite
	ColorBlack
)

// String returns the canonical file representation of the color.
func (c Color) String() string {
	switch c {
	case ColorNone:
		return ""
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	}
	return fmt.Sprintf("color(%d)", int(c))
}

// ParseColor converts a tournament file token into a Color.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ColorNone, nil
	case "white", "w":
		return ColorWhite, nil
	case "black", "b":
		return ColorBlack, nil
	}
	return ColorNone, fmt.Errorf("unknown color %q", s)
}
