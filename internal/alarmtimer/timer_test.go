package alarmtimer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "notifycenter/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArmRejectsSubSecondPeriod(t *testing.T) {
	tm := New(func(context.Context) {}, logx.Nop())
	err := tm.Arm(500 * time.Millisecond)
	require.ErrorIs(t, err, ErrPeriodTooShort)
	assert.Zero(t, tm.Period())
}

func TestArmReplacesSchedule(t *testing.T) {
	tm := New(func(context.Context) {}, logx.Nop())
	require.NoError(t, tm.Arm(time.Minute))
	require.NoError(t, tm.Arm(2*time.Minute))

	assert.Len(t, tm.c.Entries(), 1)
	assert.Equal(t, 2*time.Minute, tm.Period())

	tm.Disarm()
	assert.Empty(t, tm.c.Entries())
	assert.Zero(t, tm.Period())
	tm.Disarm()
}

func TestTicksUntilDisarmed(t *testing.T) {
	var ticks atomic.Int32
	tm := New(func(context.Context) { ticks.Add(1) }, logx.Nop())
	tm.Start(context.Background())
	defer func() { _ = tm.Stop(context.Background()) }()

	require.NoError(t, tm.Arm(time.Second))
	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	tm.Disarm()
	n := ticks.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, ticks.Load())
}

func TestStaleTickIsDropped(t *testing.T) {
	var ticks atomic.Int32
	tm := New(func(context.Context) { ticks.Add(1) }, logx.Nop())
	require.NoError(t, tm.Arm(time.Minute))
	stale := tm.gen.Load()
	tm.Disarm()

	tm.tick(stale)
	assert.Zero(t, ticks.Load())
}

func TestTickRecoversPanic(t *testing.T) {
	tm := New(func(context.Context) { panic("boom") }, logx.Nop())
	require.NoError(t, tm.Arm(time.Minute))
	assert.NotPanics(t, func() { tm.tick(tm.gen.Load()) })
}
