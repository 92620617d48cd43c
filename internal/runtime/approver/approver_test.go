package approver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApprover struct {
	name     string
	decision Decision
	err      error
	delay    time.Duration
	calls    int
}

func (s *stubApprover) Name() string { return s.name }

func (s *stubApprover) Approve(ctx context.Context, _ Request) (Decision, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		}
	}
	return s.decision, s.err
}

func TestChainStopsAtFirstDenial(t *testing.T) {
	first := &stubApprover{name: "a", decision: Decision{Allowed: true}}
	second := &stubApprover{name: "b", decision: Decision{Allowed: false, Reason: "no"}}
	third := &stubApprover{name: "c", decision: Decision{Allowed: true}}

	decision, err := Chain{Approvers: []Approver{first, second, third}}.Approve(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "b", decision.Source)
	assert.Zero(t, third.calls)
}

func TestChainPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	decision, err := Chain{Approvers: []Approver{&stubApprover{name: "x", err: boom}}}.Approve(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "x", decision.Source)
}

func TestEmptyChainApproves(t *testing.T) {
	decision, err := Chain{}.Approve(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestTimeoutDenies(t *testing.T) {
	slow := &stubApprover{name: "slow", delay: time.Second, decision: Decision{Allowed: true}}
	decision, err := Timeout{Inner: slow, Timeout: 20 * time.Millisecond}.Approve(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "approval timed out after 20ms", decision.Reason)
	assert.Equal(t, "slow", decision.Source)
}

func TestTimeoutReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &stubApprover{name: "slow", delay: time.Second, decision: Decision{Allowed: true}}
	decision, err := Timeout{Inner: slow, Timeout: time.Minute}.Approve(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, decision.Allowed)
}

func TestTimeoutPassesDecisionThrough(t *testing.T) {
	fast := &stubApprover{name: "fast", decision: Decision{Allowed: true, Source: "fast"}}
	decision, err := Timeout{Inner: fast, Timeout: time.Second}.Approve(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = Timeout{Timeout: time.Second}.Approve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "invalid timeout approver", decision.Reason)
}

func TestChainNamesApprovers(t *testing.T) {
	chain := Chain{Approvers: []Approver{
		&stubApprover{name: "limits", decision: Decision{Allowed: true}},
		&stubApprover{name: "policy", decision: Decision{Allowed: true}},
	}}
	decision, err := chain.Approve(context.Background(), Request{Batch: "release"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "limits,policy", decision.Source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = chain.Approve(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
