package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendThrottle(t *testing.T) {
	client, mr := setupTestRedis(t)
	throttle := NewResendThrottle(client, 60*time.Second)
	ctx := context.Background()

	ok, wait, err := throttle.CanResend(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, wait)

	require.NoError(t, throttle.MarkSent(ctx, "a@b.com"))

	ok, wait, err = throttle.CanResend(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, wait, int64(0))
	assert.LessOrEqual(t, wait, int64(60))

	ok, _, err = throttle.CanResend(ctx, "+919876543210")
	require.NoError(t, err)
	assert.True(t, ok, "throttle is per identifier")

	mr.FastForward(61 * time.Second)
	ok, _, err = throttle.CanResend(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
}
