package artifact

import "errors"

var (
	// ErrIOFailure wraps any filesystem error met while writing or reading artifacts.
	ErrIOFailure = errors.New("artifact i/o failure")
	// ErrCorrupt reports an artifact that exists but cannot be decoded or holds invalid values.
	ErrCorrupt = errors.New("artifact corrupt")
	// ErrLocked is returned when another run holds the task lock.
	ErrLocked = errors.New("artifact store locked")
)
