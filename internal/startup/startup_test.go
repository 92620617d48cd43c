package startup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tool-batch-server/internal/dsl"
)

func TestRunExecutesHooksInOrder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "hooks.log")
	hooks := []dsl.HookConfig{
		{Command: "echo first >> " + out},
		{Command: ""},
		{Command: "echo $MARK >> " + out, Env: map[string]string{"MARK": "second"}},
	}
	require.NoError(t, Run(context.Background(), hooks, nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRunStopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "never")
	hooks := []dsl.HookConfig{
		{Command: "exit 2"},
		{Command: "touch " + marker},
	}
	err := Run(context.Background(), hooks, nil)
	assert.ErrorContains(t, err, "startup hook 0 failed")
	assert.NoFileExists(t, marker)
}

func TestRunHonorsTimeout(t *testing.T) {
	err := Run(context.Background(), []dsl.HookConfig{{Command: "sleep 5", Timeout: "50ms"}}, nil)
	assert.Error(t, err)
}
