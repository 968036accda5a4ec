package engine

import "fmt"

// QuotaEnforcer counts the actions processed in one critical section and
// enforces WithMaxCascadeSteps.
//
// The quota is an extension and off by default: cascades are unbounded
// unless a limit is configured. A limit of 0 never trips.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
func (q *QuotaEnforcer) Check(cascade, actionType string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &RuntimeError{
			Code:    ErrCodeStepsExceeded,
			Message: fmt.Sprintf("cascade exceeded max steps (%d > %d)", q.current, q.maxSteps),
			Cascade: cascade,
			Type:    actionType,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}
