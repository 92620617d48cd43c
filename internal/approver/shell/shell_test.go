package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tool-batch-server/internal/runtime/approver"
)

func TestApproveByExitCode(t *testing.T) {
	cases := []struct {
		name       string
		approver   Approver
		allowed    bool
		wantReason string
	}{
		{name: "success", approver: Approver{Command: "true"}, allowed: true, wantReason: "approved"},
		{name: "failure", approver: Approver{Command: "echo nope; exit 1"}, allowed: false, wantReason: "nope"},
		{name: "allowed exit code", approver: Approver{Command: "exit 3", AllowExitCodes: []int{3}}, allowed: true, wantReason: "approved"},
		{name: "templated", approver: Approver{Command: `test "{{ arg "env" }}" = dev`}, allowed: true, wantReason: "approved"},
		{name: "identity env", approver: Approver{Command: `test "$TOOL_BATCH_BATCH/$TOOL_BATCH_TOOL_ID" = release/d1`}, allowed: true, wantReason: "approved"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := tc.approver.Approve(context.Background(), approver.Request{
				Batch:     "release",
				ToolName:  "deploy",
				ToolID:    "d1",
				Arguments: map[string]any{"env": "dev"},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.wantReason, decision.Reason)
			assert.Equal(t, "shell", decision.Source)
		})
	}
}

func TestApproveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	decision, err := Approver{Label: "gate", Command: "sleep 1"}.Approve(ctx, approver.Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "gate", decision.Source)
}
