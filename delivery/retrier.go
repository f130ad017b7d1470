package delivery

import (
	"time"

	"github.com/heraldhq/herald/event"
)

// Retrier applies the backoff schedule between delivery attempts.
//
// The schedule is indexed by attempt count: after attempt 1 the event waits
// schedule[0], after attempt 2 schedule[1], and so on; attempts beyond the
// schedule reuse the last interval. The retry sweep consults Eligible before
// reattempting, so retries never fire as fast as the sweep runs.
type Retrier struct {
	schedule []time.Duration
}

// NewRetrier creates a retrier with the given backoff schedule.
func NewRetrier(schedule []time.Duration) *Retrier {
	return &Retrier{schedule: schedule}
}

// Backoff returns the minimum wait after the given number of attempts.
func (r *Retrier) Backoff(attempts int) time.Duration {
	if len(r.schedule) == 0 {
		return 0
	}
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.schedule) {
		idx = len(r.schedule) - 1
	}
	return r.schedule[idx]
}

// Eligible reports whether an event may be reattempted at now. Events that
// have never been attempted are always eligible; otherwise the most recent
// attempt must be older than the backoff interval for the event's attempt
// count.
func (r *Retrier) Eligible(evt *event.WebhookEvent, now time.Time) bool {
	if evt.Attempts == 0 || evt.LastAttemptAt == nil {
		return true
	}
	return !now.Before(evt.LastAttemptAt.Add(r.Backoff(evt.Attempts)))
}

// NextEligibleAt returns the earliest time the event may be reattempted.
// Returns the zero time for events that have never been attempted.
func (r *Retrier) NextEligibleAt(evt *event.WebhookEvent) time.Time {
	if evt.Attempts == 0 || evt.LastAttemptAt == nil {
		return time.Time{}
	}
	return evt.LastAttemptAt.Add(r.Backoff(evt.Attempts))
}
