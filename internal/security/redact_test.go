package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactArguments(t *testing.T) {
	in := map[string]any{
		"image":       "api:v2",
		"api_token":   "t0k3n",
		"secret_name": "db-creds",
		"db": map[string]any{
			"host":     "db.local",
			"Password": "hunter2",
		},
		"steps": []any{map[string]any{"cookie": "c"}, "plain"},
	}
	got := RedactArguments(in)

	assert.Equal(t, "api:v2", got["image"])
	assert.Equal(t, Mask, got["api_token"])
	assert.Equal(t, "db-creds", got["secret_name"])
	assert.Equal(t, map[string]any{"host": "db.local", "Password": Mask}, got["db"])
	assert.Equal(t, []any{map[string]any{"cookie": Mask}, "plain"}, got["steps"])
	assert.Equal(t, "hunter2", in["db"].(map[string]any)["Password"], "input is not mutated")
}

func TestRedactParameters(t *testing.T) {
	assert.Nil(t, RedactParameters(nil))
	got := RedactParameters(map[string]map[string]any{"deploy": {"token": "x", "env": "prod"}})
	assert.Equal(t, map[string]any{"deploy": map[string]any{"token": Mask, "env": "prod"}}, got)
	assert.Nil(t, RedactArguments(nil))
}
