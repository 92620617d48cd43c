package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBytesExpandsEnvironment(t *testing.T) {
	t.Setenv("TB_RENDER_HOST", "deploy.internal")
	t.Setenv("TB_RENDER_MODE", "")

	out, tracker, err := Render("cfg", []byte(`url: {{ env "TB_RENDER_HOST" | quote }}
mode: {{ env "TB_RENDER_MODE" | default "fast" }}
port: {{ envOr "TB_RENDER_PORT_UNSET" "8080" }}
name: {{ upper "api" }}`))
	require.NoError(t, err)
	assert.Equal(t, "url: \"deploy.internal\"\nmode: fast\nport: 8080\nname: API", string(out))
	assert.Equal(t, []string{"TB_RENDER_HOST", "TB_RENDER_MODE", "TB_RENDER_PORT_UNSET"}, tracker.Used())
}

func TestRenderBytesReportsMissing(t *testing.T) {
	_, err := RenderBytes("cfg", []byte(`{{ env "TB_RENDER_B_UNSET" }}{{ env "TB_RENDER_A_UNSET" }}`))
	assert.EqualError(t, err, "missing env vars: TB_RENDER_A_UNSET, TB_RENDER_B_UNSET")

	_, err = RenderBytes("cfg", []byte(`{{ required "TB_RENDER_C_UNSET" }}`))
	assert.ErrorContains(t, err, "environment variable TB_RENDER_C_UNSET is required")

	_, err = RenderBytes("cfg", []byte(`{{ broken`))
	assert.ErrorContains(t, err, "parse template")
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`value: {{ ternary true "a" "b" }}`), 0o600))

	out, err := RenderFile(path)
	require.NoError(t, err)
	assert.Equal(t, "value: a", string(out))

	_, err = RenderFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}
