package domain

import (
	"fmt"
	"strings"
)

// ResultID identifies one query execution's result stream. Never reused.
type ResultID string

// Policy defines who closes a session once its query has run.
type Policy string

const (
	PolicyImmediate      Policy = "immediate"        // Results are buffered and the session closes at once
	PolicyCloseOnExhaust Policy = "close_on_exhaust" // Closes when the cursor reports exhaustion
	PolicyDeferred       Policy = "deferred"         // Closes after a delay, read or not
	PolicyManual         Policy = "manual"           // Stays open until released by ResultID
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	return string(p)
}

// ParsePolicy accepts the canonical names plus a few short aliases.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "close_on_exhaust", "exhaust", "auto":
		return PolicyCloseOnExhaust, nil
	case "immediate", "now":
		return PolicyImmediate, nil
	case "deferred", "timeout", "keep_open":
		return PolicyDeferred, nil
	case "manual":
		return PolicyManual, nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}
