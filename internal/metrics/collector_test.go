// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/store"
)

type fakeSource struct {
	conns, ases int
}

func (f fakeSource) ConnectionCount() int { return f.conns }
func (f fakeSource) ASCount() int         { return f.ases }

func TestCollectMetricsPollsStoreCounts(t *testing.T) {
	s, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	ownerID, err := s.CreateOwner(ctx, model.Owner{Name: "acme"})
	require.NoError(t, err)
	isdID, err := s.CreateISD(ctx, model.ISD{ID: 1, Name: "isd1"})
	require.NoError(t, err)
	_, err = s.CreateAS(ctx, model.AS{ASN: 64512, ISDID: isdID, Owner: ownerID, Name: "as1"})
	require.NoError(t, err)

	c := NewCollector(s, fakeSource{conns: 3, ases: 2}, nil, time.Hour)
	c.collectMetrics(ctx)

	counts, lastUpdate := c.LastCounts()
	assert.Equal(t, int64(1), counts.ASes)
	assert.False(t, lastUpdate.IsZero())
	assert.Equal(t, float64(3), testutil.ToFloat64(c.registry.Connections))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.registry.ConnectedAS))
}

func TestCollectorStartStopDoesNotBlock(t *testing.T) {
	s, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := NewCollector(s, nil, nil, time.Millisecond)
	done := make(chan struct{})
	go func() {
		c.Start()
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
