package narration

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is reported when play is requested with no units.
	ErrEmptyDocument = errors.New("nothing to narrate")
	// ErrEngineUnavailable means no speech capability was found.
	ErrEngineUnavailable = errors.New("speech engine unavailable")
)

// EngineError is a real synthesis failure reported by the engine.
type EngineError struct {
	Code string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("narration failed: %s", e.Code)
}

// IsCancellation reports whether an engine error code means the request
// was stopped or superseded rather than failing.
func IsCancellation(code string) bool {
	switch code {
	case "", "canceled", "cancelled", "interrupted":
		return true
	}
	return false
}
