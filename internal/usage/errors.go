package usage

import "errors"

var (
	// ErrLimitReached indicates the user exceeded their daily limit for a kind.
	ErrLimitReached = errors.New("daily limit reached")
	// ErrUnknownKind is returned for kinds without a configured limit.
	ErrUnknownKind = errors.New("unknown usage kind")
)
