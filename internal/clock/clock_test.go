package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Real{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReal_SleepElapses(t *testing.T) {
	assert.NoError(t, Real{}.Sleep(context.Background(), time.Millisecond))
}

func TestFake_RecordsAndStops(t *testing.T) {
	f := &Fake{Limit: 2}
	ctx := context.Background()

	assert.NoError(t, f.Sleep(ctx, time.Second))
	assert.NoError(t, f.Sleep(ctx, time.Minute))
	assert.ErrorIs(t, f.Sleep(ctx, time.Hour), ErrStopped)
	assert.Equal(t, []time.Duration{time.Second, time.Minute}, f.Sleeps())
}
