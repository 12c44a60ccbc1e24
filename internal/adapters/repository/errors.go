package repository

import "errors"

// Sentinel kinds for standings store errors.
var (
	ErrNotFound     = errors.New("standing not found")
	ErrInvalidLimit = errors.New("invalid standings limit")
)
