package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	fail atomic.Bool
}

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.fail.Load() {
		return errors.New("boom")
	}
	return nil
}

func TestProbeExitsAfterConsecutiveFailures(t *testing.T) {
	pinger := &fakePinger{}
	pinger.fail.Store(true)

	var exitCode atomic.Int32
	exitCode.Store(-1)
	probe := NewProbe(pinger, func(code int) { exitCode.Store(int32(code)) })
	probe.cfg.StartPeriod = 0 // ticks below fire within milliseconds of construction

	ctx := context.Background()
	probe.tick(ctx)
	probe.tick(ctx)
	assert.Equal(t, int32(-1), exitCode.Load())
	probe.tick(ctx)
	assert.Equal(t, int32(1), exitCode.Load())
}

func TestProbeStaysHealthyOnSuccess(t *testing.T) {
	pinger := &fakePinger{}
	var exitCode atomic.Int32
	exitCode.Store(-1)
	probe := NewProbe(pinger, func(code int) { exitCode.Store(int32(code)) })

	probe.tick(context.Background())
	probe.tick(context.Background())
	assert.Equal(t, int32(-1), exitCode.Load())
	assert.True(t, probe.Status().Healthy)
}

func TestProbeRecoversAfterFailures(t *testing.T) {
	pinger := &fakePinger{}
	probe := NewProbe(pinger, func(code int) {})
	probe.cfg.Retries = 3 // Healthy flips false on the third failure; the Exiter above is a no-op

	pinger.fail.Store(true)
	probe.tick(context.Background())
	probe.tick(context.Background())
	probe.tick(context.Background())
	assert.False(t, probe.Status().Healthy)

	pinger.fail.Store(false)
	probe.tick(context.Background())
	assert.True(t, probe.Status().Healthy)
}

func TestProbeStartPeriodSuppressesFatalExit(t *testing.T) {
	pinger := &fakePinger{}
	pinger.fail.Store(true)

	var exitCode atomic.Int32
	exitCode.Store(-1)
	probe := NewProbe(pinger, func(code int) { exitCode.Store(int32(code)) })
	// Default NewProbe start period is 60s; ticks below happen immediately.

	ctx := context.Background()
	probe.tick(ctx)
	probe.tick(ctx)
	probe.tick(ctx)
	probe.tick(ctx)
	assert.Equal(t, int32(-1), exitCode.Load())
	assert.False(t, probe.Status().Healthy)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	pinger := &fakePinger{}
	probe := NewProbe(pinger, func(code int) {})
	probe.cfg.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		probe.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
