package approver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout bounds an inner approver. An approver that overruns its deadline
// denies the invocation; a cancelled batch surfaces as an error instead.
type Timeout struct {
	// Inner is the wrapped approver.
	Inner Approver
	// Timeout is the maximum duration for approval.
	Timeout time.Duration
}

// Name returns the inner approver name.
func (t Timeout) Name() string {
	if t.Inner != nil {
		return t.Inner.Name()
	}
	return "timeout"
}

// Approve runs the inner approver under the deadline.
func (t Timeout) Approve(ctx context.Context, req Request) (Decision, error) {
	if t.Inner == nil || t.Timeout <= 0 {
		return Decision{Allowed: false, Reason: "invalid timeout approver", Source: t.Name()}, nil
	}
	bounded, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	decision, err := t.Inner.Approve(bounded, req)
	if ctx.Err() != nil {
		return Decision{Allowed: false, Reason: "approval canceled", Source: t.Name()}, ctx.Err()
	}
	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return Decision{Allowed: false, Reason: fmt.Sprintf("approval timed out after %s", t.Timeout), Source: t.Name()}, nil
	}
	return decision, err
}
