package coordinator

import "errors"

var (
	ErrUnknownHouse   = errors.New("unknown_house")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidQuality = errors.New("invalid_quality")
)
