package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationOr(t *testing.T) {
	assert.Equal(t, 3*time.Second, DurationOr("3s", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("soon", time.Minute))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("timeout", ""))
	assert.NoError(t, Check("timeout", "250ms"))
	assert.EqualError(t, Check("timeout", "-1s"), "timeout must not be negative")
	assert.ErrorContains(t, Check("timeout", "ten"), "timeout is invalid")
}
