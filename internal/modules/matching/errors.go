package matching

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery      = errors.New("invalid search query")
	ErrFallbackExhausted = errors.New("all search strategies failed")
)

// Stages reported by EngineError.
const (
	StageQuery       = "query"
	StageScore       = "score"
	StageTraditional = "traditional"
)

// EngineError is a storage or computation failure inside a matching pass.
type EngineError struct {
	Stage string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("match engine %s: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
