// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"sync"
	"time"

	"netsys.dev/peeringcoord/internal/logging"
	"netsys.dev/peeringcoord/internal/store"
)

// Source is the subset of registry.Registry the collector polls. Declared
// here, not imported, to avoid a metrics -> registry dependency; the
// composition root passes in the real *registry.Registry, which already
// satisfies it.
type Source interface {
	ConnectionCount() int
	ASCount() int
}

// Collector periodically gathers a census of the data model and updates
// the Prometheus registry with it.
type Collector struct {
	registry *Registry
	store    *store.Store
	source   Source
	logger   *logging.Logger
	interval time.Duration
	stopCh   chan struct{}

	mu         sync.RWMutex
	lastUpdate time.Time
	lastCounts store.Counts
}

// NewCollector creates a new metrics collector.
func NewCollector(s *store.Store, src Source, logger *logging.Logger, interval time.Duration) *Collector {
	if logger == nil {
		logger = logging.Default().WithComponent("metrics")
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		registry: Get(),
		store:    s,
		source:   src,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics collection loop, polling once immediately and
// then every interval until Stop is called.
func (c *Collector) Start() {
	c.logger.Info("starting metrics collector", "interval", c.interval.String())
	c.collectMetrics(context.Background())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collectMetrics(context.Background())
		case <-c.stopCh:
			c.logger.Info("stopping metrics collector")
			return
		}
	}
}

// Stop ends the collection loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

// collectMetrics polls the store and connection registry and pushes the
// results into the Prometheus gauges.
func (c *Collector) collectMetrics(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	counts, err := c.store.Counts(ctx)
	if err != nil {
		c.logger.Warn("metrics poll failed", "error", err)
		return
	}

	c.registry.ASes.Set(float64(counts.ASes))
	c.registry.VLANs.Set(float64(counts.VLANs))
	c.registry.Clients.Set(float64(counts.Clients))
	c.registry.Interfaces.Set(float64(counts.Interfaces))
	c.registry.Links.Set(float64(counts.Links))
	c.registry.Policies.Set(float64(counts.Policies))

	if c.source != nil {
		c.registry.Connections.Set(float64(c.source.ConnectionCount()))
		c.registry.ConnectedAS.Set(float64(c.source.ASCount()))
	}

	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.lastCounts = counts
	c.mu.Unlock()
}

// LastCounts returns the most recently polled census, for health endpoints
// and tests.
func (c *Collector) LastCounts() (store.Counts, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCounts, c.lastUpdate
}
