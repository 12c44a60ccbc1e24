package importer

import "errors"

// ErrInvalidTournament reports a tournament file that cannot be turned into a model.
var ErrInvalidTournament = errors.New("invalid tournament file")
