package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrUnknownTournament = errors.New("unknown tournament")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrBackpressure      = errors.New("refresh queue is full")
	ErrNotStarted        = errors.New("service not started")
	ErrRefreshInProgress = errors.New("refresh already in progress")
)
