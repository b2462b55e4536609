package component

import "time"

// WorkStatus reports what a work cycle accomplished.
type WorkStatus int

const (
	// WorkYield indicates no progress this cycle. The scheduler should try
	// again later without penalty; yielding is normal backpressure, not an
	// error.
	WorkYield WorkStatus = iota
	// WorkProgress indicates the cycle produced or consumed data.
	WorkProgress
)

// String returns a string representation of the work status
func (ws WorkStatus) String() string {
	switch ws {
	case WorkYield:
		return "yield"
	case WorkProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// WorkContext carries the per-cycle inputs supplied by the scheduler.
type WorkContext struct {
	// Budget is the maximum time the work cycle may spend waiting for
	// resource readiness. Zero means poll and return immediately; a Work
	// implementation must never block beyond the budget.
	Budget time.Duration
}

// Worker defines blocks driven by the scheduler's work cycle. Work is
// never invoked concurrently on the same block instance.
type Worker interface {
	Work(cycle *WorkContext) WorkStatus
}
