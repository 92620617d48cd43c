package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	args := map[string]any{"b": 1, "a": []any{"x", map[string]any{"z": true, "y": nil}}}
	reordered := map[string]any{"a": []any{"x", map[string]any{"y": nil, "z": true}}, "b": 1}

	hashed, err := Key("deploy", "corr", false, args, "auto")
	require.NoError(t, err)
	again, err := Key("deploy", "corr", false, reordered, "auto")
	require.NoError(t, err)
	assert.Equal(t, hashed, again)
	assert.NotEqual(t, "deploy:corr", hashed)

	cases := []struct {
		name     string
		corr     string
		provided bool
		strategy string
		want     string
	}{
		{name: "auto with provided id", corr: "corr", provided: true, strategy: "", want: "deploy:corr"},
		{name: "correlation id", corr: "corr", strategy: "correlation_id", want: "deploy:corr"},
		{name: "arguments hash", corr: "corr", provided: true, strategy: "ARGUMENTS_HASH", want: hashed},
		{name: "empty correlation id", provided: true, strategy: "correlation_id", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := Key("deploy", tc.corr, tc.provided, args, tc.strategy)
			require.NoError(t, err)
			assert.Equal(t, tc.want, key)
		})
	}

	_, err = Key("deploy", "corr", true, args, "random")
	assert.ErrorContains(t, err, "unsupported cache key strategy")
	_, err = Key("deploy", "", false, map[string]any{"ch": make(chan int)}, "auto")
	assert.ErrorContains(t, err, "hash arguments")
}
