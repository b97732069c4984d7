package cluster

import "errors"

var (
	// ErrInvalidThreshold is returned for a threshold that is not a number in [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
	// ErrInvalidSort is returned for an unknown unclustered sort key.
	ErrInvalidSort = errors.New("unknown sort key")
)
