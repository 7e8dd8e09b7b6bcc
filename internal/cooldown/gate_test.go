package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusAvailable(t *testing.T) {
	now := time.Now()

	st := Status(nil, now)
	assert.Equal(t, PhaseAvailable, st.Phase)
	assert.Zero(t, st.Seconds)
	assert.Nil(t, st.Until)

	past := now.Add(-time.Minute)
	st = Status(&past, now)
	assert.Equal(t, PhaseAvailable, st.Phase)
}

func TestStatusInCooldown(t *testing.T) {
	now := time.Now()
	next := now.Add(90*time.Minute + 500*time.Millisecond)

	st := Status(&next, now)
	assert.Equal(t, PhaseInCooldown, st.Phase)
	// Sub-second remainder floors away.
	assert.Equal(t, int64(90*60), st.Seconds)
	require.NotNil(t, st.Until)
	assert.True(t, st.Until.Equal(next))
}

func TestStatusBoundaryIsAvailable(t *testing.T) {
	now := time.Now()
	st := Status(&now, now)
	assert.Equal(t, PhaseAvailable, st.Phase)
}

func TestArm(t *testing.T) {
	now := time.Now()

	upd := Arm(now, PeriodFromHours(24))
	require.NotNil(t, upd.LastGenerationAt)
	require.NotNil(t, upd.NextGenerationAt)
	assert.True(t, upd.LastGenerationAt.Equal(now))
	assert.True(t, upd.NextGenerationAt.Equal(now.Add(24*time.Hour)))
	assert.False(t, upd.IsReset())
}

func TestArmZeroPeriod(t *testing.T) {
	now := time.Now()
	upd := Arm(now, 0)
	require.NotNil(t, upd.LastGenerationAt)
	assert.Nil(t, upd.NextGenerationAt)
}

func TestOverride(t *testing.T) {
	now := time.Now()

	until := now.Add(2 * time.Hour)
	upd := Override(&until, now)
	require.NotNil(t, upd.NextGenerationAt)
	assert.True(t, upd.NextGenerationAt.Equal(until))

	// Past target resets both stamps instead of arming a lapsed window.
	past := now.Add(-time.Second)
	upd = Override(&past, now)
	assert.True(t, upd.IsReset())

	upd = Override(nil, now)
	assert.True(t, upd.IsReset())
}

func TestTickCountsDownToAvailable(t *testing.T) {
	base := time.Now()
	var calls int
	clock := func() time.Time {
		t := base.Add(time.Duration(calls) * time.Second)
		calls++
		return t
	}

	next := base.Add(2500 * time.Millisecond)
	ch := Tick(context.Background(), &next, time.Millisecond, clock)

	var states []State
	for st := range ch {
		states = append(states, st)
	}

	require.Len(t, states, 4)
	assert.Equal(t, int64(2), states[0].Seconds)
	assert.Equal(t, int64(1), states[1].Seconds)
	assert.Equal(t, int64(0), states[2].Seconds)
	assert.Equal(t, PhaseInCooldown, states[2].Phase)
	assert.Equal(t, PhaseAvailable, states[3].Phase)
}

func TestTickCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := time.Now().Add(time.Hour)
	ch := Tick(ctx, &next, time.Hour, nil)

	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("tick channel not closed after cancel")
	}
}
