package plan

import (
	"fmt"
	"strings"
	"time"
)

// PlanningError reports an internally inconsistent deployment plan: a
// dependency cycle or a parameter binding no node can satisfy. It indicates
// a builder or planner contract bug, not a user configuration problem.
type PlanningError struct {
	Node    string
	Message string
	Cycle   []string
}

func (e *PlanningError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("planning failed: dependency cycle: %s", strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("planning failed: node %s: %s", e.Node, e.Message)
}

// UploadTimeoutError reports that a barrier's bounded wait elapsed without
// the barrier being satisfied.
type UploadTimeoutError struct {
	Barrier string
	Timeout time.Duration
}

func (e *UploadTimeoutError) Error() string {
	return fmt.Sprintf("barrier %s not satisfied within %s", e.Barrier, e.Timeout)
}

// BarrierUnsatisfiedError reports that a barrier can never be satisfied,
// because its upload failed or the wait was cancelled.
type BarrierUnsatisfiedError struct {
	Barrier string
	Cause   error
}

func (e *BarrierUnsatisfiedError) Error() string {
	return fmt.Sprintf("barrier %s unsatisfied: %v", e.Barrier, e.Cause)
}

func (e *BarrierUnsatisfiedError) Unwrap() error {
	return e.Cause
}
