package health

import (
	"context"
	"time"

	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
)

// Pinger is the narrow storage dependency the probe needs: a trivial
// liveness query against the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Exiter lets tests observe a fatal exit without killing the test process.
type Exiter func(code int)

// Probe runs the periodic liveness query against the store and terminates
// the process after cfg.Retries consecutive failures. It owns the single
// Status it mutates; nothing else touches it.
type Probe struct {
	pinger Pinger
	cfg    Config
	exit   Exiter

	status *Status
}

// NewProbe constructs a Probe with DefaultConfig's production defaults (30s
// interval, 10s timeout, 3 consecutive failures before a fatal exit), plus a
// 60s start period: failures during the first 60s after construction are
// logged but never trigger the fatal exit, giving a cold-starting storage
// connection time to come up before the probe gives up on it.
func NewProbe(pinger Pinger, exit Exiter) *Probe {
	cfg := DefaultConfig()
	cfg.StartPeriod = 60 * time.Second
	return &Probe{
		pinger: pinger,
		cfg:    cfg,
		exit:   exit,
		status: NewStatus(),
	}
}

// Run blocks, executing one check per interval, until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Probe) tick(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := p.pinger.Ping(checkCtx)
	result := Result{Healthy: err == nil, CheckedAt: time.Now(), Duration: time.Since(start)}
	if err != nil {
		result.Message = err.Error()
	}

	wasHealthy := p.status.Healthy
	inStartPeriod := p.status.InStartPeriod(p.cfg)
	p.status.Update(result, p.cfg)

	if !result.Healthy {
		metrics.HealthProbeFailuresTotal.Inc()
		log.Logger.Warn().Err(err).Int("consecutive_failures", p.status.ConsecutiveFailures).
			Msg("health: storage probe failed")
		if inStartPeriod {
			log.Logger.Info().Msg("health: storage probe failing during start period, not exiting")
			return
		}
		if p.status.ConsecutiveFailures >= p.cfg.Retries {
			log.Logger.Error().Msg("health: storage probe failed too many times, exiting")
			p.exit(1)
		}
		return
	}

	if !wasHealthy {
		log.Logger.Info().Msg("health: storage probe recovered")
	}
}

// Status returns the probe's current status snapshot.
func (p *Probe) Status() Status {
	return *p.status
}
