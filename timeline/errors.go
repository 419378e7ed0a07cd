package timeline

import "fmt"

// NarrationTooShortError is returned when the voice track is below the minimum
// length a reel needs.
type NarrationTooShortError struct {
	Duration float64
	Minimum  float64
}

func (e *NarrationTooShortError) Error() string {
	return fmt.Sprintf("narration too short: %.3fs is below the %.3fs minimum", e.Duration, e.Minimum)
}

// InvalidParameterError reports a caller bug in the timing inputs. It is never retried.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Name, e.Value, e.Reason)
}
