package deploy

import "fmt"

// BlockedError reports a node that never started because an upstream node or
// barrier failed. Blocked nodes are reported, never silently skipped.
type BlockedError struct {
	Node  string
	Cause error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("stack %s blocked: %v", e.Node, e.Cause)
}

func (e *BlockedError) Unwrap() error {
	return e.Cause
}
