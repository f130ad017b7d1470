package delivery

import (
	"context"

	"github.com/heraldhq/herald/id"
)

// Store defines the persistence contract for delivery attempt logs.
type Store interface {
	// AppendLog persists one attempt log. Logs are append-only; the engine
	// writes exactly one per attempt.
	AppendLog(ctx context.Context, l *AttemptLog) error

	// ListLogs returns all logs for an event ordered by attempt number.
	ListLogs(ctx context.Context, evtID id.ID) ([]*AttemptLog, error)
}
