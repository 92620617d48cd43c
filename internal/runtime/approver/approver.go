// Package approver gates tool invocations behind an ordered chain of
// approvers.
package approver

import (
	"context"
	"strings"
)

// Request describes the invocation awaiting approval.
type Request struct {
	// Batch is the running batch name.
	Batch string
	// ToolName is the tool being approved.
	ToolName string
	// ToolID is the execution id within the batch.
	ToolID string
	// ExecutionID identifies this invocation.
	ExecutionID string
	// Arguments are tool arguments.
	Arguments map[string]any
	// CorrelationID links related approvals.
	CorrelationID string
}

// Decision represents the approver decision.
type Decision struct {
	Allowed bool
	Reason  string
	// Source identifies the approver that decided.
	Source string
}

// Approver checks whether an invocation is allowed.
type Approver interface {
	Name() string
	Approve(ctx context.Context, req Request) (Decision, error)
}

// Chain runs approvers sequentially until one denies.
type Chain struct {
	Approvers []Approver
}

// Approve returns the first denial, or an approval naming every approver
// that allowed the invocation. A cancelled context stops the chain.
func (c Chain) Approve(ctx context.Context, req Request) (Decision, error) {
	names := make([]string, 0, len(c.Approvers))
	for _, item := range c.Approvers {
		if err := ctx.Err(); err != nil {
			return Decision{Allowed: false, Reason: "approval canceled", Source: item.Name()}, err
		}
		decision, err := item.Approve(ctx, req)
		if err != nil {
			return Decision{Allowed: false, Reason: err.Error(), Source: item.Name()}, err
		}
		if !decision.Allowed {
			if decision.Source == "" {
				decision.Source = item.Name()
			}
			return decision, nil
		}
		names = append(names, item.Name())
	}
	return Decision{Allowed: true, Reason: "approved", Source: strings.Join(names, ",")}, nil
}
