package types

import (
	"fmt"
	"time"
)

// Error taxonomy for the memory engine. Callers match with errors.As; the
// concrete types carry enough context that no string parsing is ever needed.

// ValidationError reports an unknown session/turn reference or malformed
// caller input. Lookups that miss ("not found") are validation errors.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewNotFound builds the ValidationError used for missing sessions/users.
func NewNotFound(kind, id string) *ValidationError {
	return &ValidationError{Field: kind, Reason: fmt.Sprintf("%q not found", id)}
}

// UpstreamError reports a failed external send/analyze call, carrying the
// attempt count and the last underlying cause instead of driving control
// flow through panics.
type UpstreamError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConsistencyError reports an illegal lifecycle transition or a failed
// post-write consistency check. State is left unchanged when one is returned.
type ConsistencyError struct {
	Op     string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation in %s: %s", e.Op, e.Detail)
}

// NewIllegalTransition builds the ConsistencyError for a transition the
// lifecycle table does not permit.
func NewIllegalTransition(from, to SessionStatus) *ConsistencyError {
	return &ConsistencyError{
		Op:     "transition",
		Detail: fmt.Sprintf("%s -> %s is not a legal transition", from, to),
	}
}

// TimeoutError reports that the sync coordinator's fan-in deadline expired
// with tasks still outstanding.
type TimeoutError struct {
	Op       string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded deadline of %s", e.Op, e.Deadline)
}

// RotationError reports a memory block that exceeds its size limit and
// cannot be reduced by trimming.
type RotationError struct {
	BlockID string
	Size    int
	Limit   int
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("block %s holds %d bytes, exceeds limit %d and cannot be rotated down", e.BlockID, e.Size, e.Limit)
}
