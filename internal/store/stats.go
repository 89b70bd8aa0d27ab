// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import "context"

// Counts is a point-in-time census of the coordinator's data model, polled
// by internal/metrics to populate its gauges.
type Counts struct {
	ASes      int64
	VLANs     int64
	Clients   int64
	Interfaces int64
	Links      int64
	Policies   int64
}

// Counts reports row counts across the entities and policy tables. It runs
// outside any transaction since it backs a metrics poll, not a consistency
// decision.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		table string
		dst   *int64
	}{
		{"ases", &c.ASes},
		{"vlans", &c.VLANs},
		{"peering_clients", &c.Clients},
		{"interfaces", &c.Interfaces},
		{"links", &c.Links},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, err
		}
	}

	var policyTables = []string{"default_policies", "as_peer_policies", "isd_peer_policies", "owner_peer_policies"}
	for _, table := range policyTables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return Counts{}, err
		}
		c.Policies += n
	}
	return c, nil
}
