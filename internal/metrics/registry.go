// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the coordinator's Prometheus metrics: a census of
// the data model (ASes, VLANs, links, policies, live connections) polled by
// Collector, plus counters instrumented directly from the RPC layer and
// resolver (requests, resolver runs, dropped notifications).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every Prometheus collector the coordinator registers.
// Unlike the teacher's nftables-era registry (one counter per chain/policy
// combination reflecting firewall rule structure), these reflect the
// coordinator's own entities: there is no packet path to instrument.
type Registry struct {
	ASes        prometheus.Gauge
	VLANs       prometheus.Gauge
	Clients     prometheus.Gauge
	Interfaces  prometheus.Gauge
	Links       prometheus.Gauge
	Policies    prometheus.Gauge
	Connections prometheus.Gauge
	ConnectedAS prometheus.Gauge

	RPCRequests      *prometheus.CounterVec
	RPCErrors        *prometheus.CounterVec
	ResolverRuns     prometheus.Counter
	NotificationDrop *prometheus.CounterVec
}

func newRegistry() *Registry {
	return &Registry{
		ASes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_ases",
			Help: "Number of ASes registered with the coordinator.",
		}),
		VLANs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_vlans",
			Help: "Number of VLANs configured.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_clients",
			Help: "Number of peering clients registered.",
		}),
		Interfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_interfaces",
			Help: "Number of interfaces allocated across all VLANs.",
		}),
		Links: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_links",
			Help: "Number of materialized links.",
		}),
		Policies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_policies",
			Help: "Number of policy rows across all four policy tables.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_connections",
			Help: "Number of live client stream connections.",
		}),
		ConnectedAS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peeringcoord_connected_ases",
			Help: "Number of ASes with at least one live stream connection.",
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peeringcoord_rpc_requests_total",
			Help: "Total RPC requests handled, by method and status.",
		}, []string{"method", "status"}),
		RPCErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peeringcoord_rpc_errors_total",
			Help: "Total RPC requests that returned an error, by method and error kind.",
		}, []string{"method", "kind"}),
		ResolverRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peeringcoord_resolver_runs_total",
			Help: "Total resolver reconciliation passes (UpdateAcceptedPeers + UpdateLinks combined).",
		}),
		NotificationDrop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peeringcoord_notifications_dropped_total",
			Help: "Total link/error notifications dropped because a connection's outbound queue was full.",
		}, []string{"reason"}),
	}
}

func (r *Registry) describe() []prometheus.Collector {
	return []prometheus.Collector{
		r.ASes, r.VLANs, r.Clients, r.Interfaces, r.Links, r.Policies,
		r.Connections, r.ConnectedAS,
		r.RPCRequests, r.RPCErrors, r.ResolverRuns, r.NotificationDrop,
	}
}

var (
	once     sync.Once
	registry *Registry
)

// Get returns the process-wide Registry, registering it with the default
// Prometheus registerer on first use.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
		prometheus.MustRegister(registry.describe()...)
	})
	return registry
}
