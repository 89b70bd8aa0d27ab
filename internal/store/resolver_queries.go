// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"errors"
)

// ASPeerPolicies returns the ids of peer ASes with an explicit accept (and
// separately, reject) AsPeerPolicy for (vlanID, asID).
func (s *Store) ASPeerPolicies(ctx context.Context, vlanID, asID int64) (accept, reject []int64, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_as_id, accept FROM as_peer_policies WHERE vlan_id = ? AND as_id = ?`, vlanID, asID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var acc bool
		if err := rows.Scan(&id, &acc); err != nil {
			return nil, nil, err
		}
		if acc {
			accept = append(accept, id)
		} else {
			reject = append(reject, id)
		}
	}
	return accept, reject, rows.Err()
}

// OwnerPeerPolicies returns the ids of owners with an explicit accept/reject
// OwnerPeerPolicy for (vlanID, asID).
func (s *Store) OwnerPeerPolicies(ctx context.Context, vlanID, asID int64) (accept, reject []int64, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_owner_id, accept FROM owner_peer_policies WHERE vlan_id = ? AND as_id = ?`, vlanID, asID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var acc bool
		if err := rows.Scan(&id, &acc); err != nil {
			return nil, nil, err
		}
		if acc {
			accept = append(accept, id)
		} else {
			reject = append(reject, id)
		}
	}
	return accept, reject, rows.Err()
}

// IsdPeerPolicies returns the ids of ISDs with an explicit accept/reject
// IsdPeerPolicy for (vlanID, asID).
func (s *Store) IsdPeerPolicies(ctx context.Context, vlanID, asID int64) (accept, reject []int32, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_isd_id, accept FROM isd_peer_policies WHERE vlan_id = ? AND as_id = ?`, vlanID, asID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int32
		var acc bool
		if err := rows.Scan(&id, &acc); err != nil {
			return nil, nil, err
		}
		if acc {
			accept = append(accept, id)
		} else {
			reject = append(reject, id)
		}
	}
	return accept, reject, rows.Err()
}

// DefaultPolicy returns whether (vlanID, asID) has a DefaultPolicy and, if
// so, its accept value.
func (s *Store) DefaultPolicy(ctx context.Context, vlanID, asID int64) (accept bool, exists bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT accept FROM default_policies WHERE vlan_id = ? AND as_id = ?`, vlanID, asID).Scan(&accept)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return accept, true, nil
}

// ASesByOwners returns every AS id owned by any of ownerIDs.
func (s *Store) ASesByOwners(ctx context.Context, ownerIDs []int64) ([]int64, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	return s.asIDsWhereIn(ctx, "owner_id", int64Args(ownerIDs))
}

// ASesByISDs returns every AS id in any of isdIDs.
func (s *Store) ASesByISDs(ctx context.Context, isdIDs []int32) ([]int64, error) {
	if len(isdIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(isdIDs))
	for i, v := range isdIDs {
		args[i] = v
	}
	return s.asIDsWhereIn(ctx, "isd_id", args)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, v := range ids {
		args[i] = v
	}
	return args
}

func (s *Store) asIDsWhereIn(ctx context.Context, column string, args []any) ([]int64, error) {
	placeholders := ""
	for i := range args {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM ases WHERE "+column+" IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
