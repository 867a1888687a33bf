package types

import (
	"errors"
	"fmt"
)

// DetectorError describes a single layer's failure to produce an opinion.
// The aggregation engine converts these into abstaining verdicts; they are
// never allowed to unwind into the polling or consuming loops.
type DetectorError struct {
	Layer  string
	Reason string
	Err    error
}

func (e *DetectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detector %s: %s: %v", e.Layer, e.Reason, e.Err)
	}
	return fmt.Sprintf("detector %s: %s", e.Layer, e.Reason)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

func NewDetectorError(layer, reason string, err error) *DetectorError {
	return &DetectorError{Layer: layer, Reason: reason, Err: err}
}

// ErrMalformedMessage marks bus payloads that do not match any known shape.
// Consumers skip such messages with a logged warning.
var ErrMalformedMessage = errors.New("malformed message")
