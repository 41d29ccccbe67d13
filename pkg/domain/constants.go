package domain

import "time"

// DefaultAutoCloseTimeout is the delay used by the deferred policy when the caller
// does not pick one.
const DefaultAutoCloseTimeout = 5000 * time.Millisecond

// Field constants for JSON payloads shared by the HTTP and MCP adapters.
const (
	KeyResultID = "result_id"
	KeyRecords  = "records"
	KeyPolicy   = "policy"
	KeyDelayMS  = "delay_ms"
)
