package metrics

import (
	"context"
	"time"
)

// StatsSource is the narrow dependency the Collector needs to populate the
// user/data-entry gauges. Defined here, not in internal/storage, so this
// package never imports the storage package that already imports metrics
// for StorageOpDuration.
type StatsSource interface {
	CountStats(ctx context.Context) (currentUsers, legacyUsers, dataEntries int64, err error)
}

// Collector periodically polls a StatsSource and republishes the result as
// the UsersTotal/DataEntriesTotal gauges, the way the teacher's own
// metrics.Collector polls the manager for node/service/task counts.
type Collector struct {
	source   StatsSource
	interval time.Duration
	stopCh   chan struct{}
	started  time.Time
}

// NewCollector builds a Collector polling source every 60 seconds.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source:   source,
		interval: 60 * time.Second,
		stopCh:   make(chan struct{}),
		started:  time.Now(),
	}
}

// Start begins the periodic poll in a background goroutine, collecting
// once immediately.
func (c *Collector) Start() {
	c.collect()
	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop ends the background poll.
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Uptime returns the time elapsed since the Collector was constructed,
// used as the process-uptime figure published on /metrics.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.started)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	current, legacy, dataEntries, err := c.source.CountStats(ctx)
	if err != nil {
		return
	}
	UsersTotal.WithLabelValues("current").Set(float64(current))
	UsersTotal.WithLabelValues("legacy").Set(float64(legacy))
	DataEntriesTotal.Set(float64(dataEntries))
	ProcessUptimeSeconds.Set(c.Uptime().Seconds())
}
