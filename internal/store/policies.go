// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"netsys.dev/peeringcoord/internal/model"
)

// IsUniqueViolation reports whether err came from a UNIQUE constraint,
// letting RPC handlers map it to ALREADY_EXISTS without a driver-specific
// error type assertion (modernc.org/sqlite reports this as a plain string).
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertPolicy inserts p into the table selected by p.Peer, inside tx.
func (t *Tx) InsertPolicy(ctx context.Context, p model.Policy) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch p.Peer {
	case model.PeerEveryone:
		res, err = t.tx.ExecContext(ctx,
			`INSERT INTO default_policies (vlan_id, as_id, accept) VALUES (?, ?, ?)`,
			p.VLANID, p.ASID, p.Accept)
	case model.PeerAS:
		res, err = t.tx.ExecContext(ctx,
			`INSERT INTO as_peer_policies (vlan_id, as_id, peer_as_id, accept) VALUES (?, ?, ?, ?)`,
			p.VLANID, p.ASID, p.PeerASID, p.Accept)
	case model.PeerOwner:
		res, err = t.tx.ExecContext(ctx,
			`INSERT INTO owner_peer_policies (vlan_id, as_id, peer_owner_id, accept) VALUES (?, ?, ?, ?)`,
			p.VLANID, p.ASID, p.PeerOwnerID, p.Accept)
	case model.PeerISD:
		res, err = t.tx.ExecContext(ctx,
			`INSERT INTO isd_peer_policies (vlan_id, as_id, peer_isd_id, accept) VALUES (?, ?, ?, ?)`,
			p.VLANID, p.ASID, p.PeerISDID, p.Accept)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeletePoliciesForAS deletes every policy (all four kinds) belonging to
// asID, optionally restricted to one VLAN. Used by SetPolicies step 1; per
// spec.md §4.4 this includes DefaultPolicy, broader than the table-specific
// deletion in the original reference.
func (t *Tx) DeletePoliciesForAS(ctx context.Context, asID int64, vlanID *int64) error {
	tables := []string{"default_policies", "as_peer_policies", "isd_peer_policies", "owner_peer_policies"}
	for _, table := range tables {
		q := "DELETE FROM " + table + " WHERE as_id = ?"
		args := []any{asID}
		if vlanID != nil {
			q += " AND vlan_id = ?"
			args = append(args, *vlanID)
		}
		if _, err := t.tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// DeletePolicy deletes a single policy row from the table selected by kind.
func (t *Tx) DeletePolicy(ctx context.Context, kind model.PeerKind, id int64) error {
	table := policyTable(kind)
	_, err := t.tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	return err
}

func policyTable(kind model.PeerKind) string {
	switch kind {
	case model.PeerAS:
		return "as_peer_policies"
	case model.PeerOwner:
		return "owner_peer_policies"
	case model.PeerISD:
		return "isd_peer_policies"
	default:
		return "default_policies"
	}
}

// FindPolicy looks up a policy by its natural key (vlan, as, peer target),
// ignoring Accept. Used by DestroyPolicy, which identifies the row to
// delete without knowing its surrogate id.
func (s *Store) FindPolicy(ctx context.Context, p model.Policy) (*model.Policy, error) {
	var (
		row *sql.Row
	)
	switch p.Peer {
	case model.PeerEveryone:
		row = s.db.QueryRowContext(ctx,
			`SELECT id, vlan_id, as_id, accept FROM default_policies WHERE vlan_id = ? AND as_id = ?`,
			p.VLANID, p.ASID)
		var out model.Policy
		out.Peer = model.PeerEveryone
		if err := row.Scan(&out.ID, &out.VLANID, &out.ASID, &out.Accept); err != nil {
			return nil, notFound(err)
		}
		return &out, nil
	case model.PeerAS:
		row = s.db.QueryRowContext(ctx, `
			SELECT id, vlan_id, as_id, peer_as_id, accept FROM as_peer_policies
			WHERE vlan_id = ? AND as_id = ? AND peer_as_id = ?`, p.VLANID, p.ASID, p.PeerASID)
		var out model.Policy
		out.Peer = model.PeerAS
		if err := row.Scan(&out.ID, &out.VLANID, &out.ASID, &out.PeerASID, &out.Accept); err != nil {
			return nil, notFound(err)
		}
		return &out, nil
	case model.PeerOwner:
		row = s.db.QueryRowContext(ctx, `
			SELECT id, vlan_id, as_id, peer_owner_id, accept FROM owner_peer_policies
			WHERE vlan_id = ? AND as_id = ? AND peer_owner_id = ?`, p.VLANID, p.ASID, p.PeerOwnerID)
		var out model.Policy
		out.Peer = model.PeerOwner
		if err := row.Scan(&out.ID, &out.VLANID, &out.ASID, &out.PeerOwnerID, &out.Accept); err != nil {
			return nil, notFound(err)
		}
		return &out, nil
	case model.PeerISD:
		row = s.db.QueryRowContext(ctx, `
			SELECT id, vlan_id, as_id, peer_isd_id, accept FROM isd_peer_policies
			WHERE vlan_id = ? AND as_id = ? AND peer_isd_id = ?`, p.VLANID, p.ASID, p.PeerISDID)
		var out model.Policy
		out.Peer = model.PeerISD
		if err := row.Scan(&out.ID, &out.VLANID, &out.ASID, &out.PeerISDID, &out.Accept); err != nil {
			return nil, notFound(err)
		}
		return &out, nil
	}
	return nil, errors.New("unknown peer kind")
}

// PolicyFilter selects ListPolicies's scope (§4.4). A zero value matches
// everything for the given AS.
type PolicyFilter struct {
	ASID      int64
	VLANID    *int64
	Accept    *bool
	Peer      *model.PeerKind // nil: all four tables
	PeerASN   uint64          // only when Peer == PeerAS and non-zero
	PeerOwner string          // only when Peer == PeerOwner and non-empty
	PeerISD   int32           // only when Peer == PeerISD and non-zero
}

// ListPolicies streams policies matching f, ordered by id within each table
// for deterministic output, in the fixed order
// default/as/owner/isd (spec.md §4.4's enumeration order).
func (s *Store) ListPolicies(ctx context.Context, f PolicyFilter) ([]model.Policy, error) {
	var out []model.Policy

	if f.Peer == nil || *f.Peer == model.PeerEveryone {
		q := `SELECT id, vlan_id, as_id, accept FROM default_policies WHERE as_id = ?`
		args := []any{f.ASID}
		q, args = appendCommon(q, args, f, "")
		rows, err := s.db.QueryContext(ctx, q+" ORDER BY id", args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var p model.Policy
			p.Peer = model.PeerEveryone
			if err := rows.Scan(&p.ID, &p.VLANID, &p.ASID, &p.Accept); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, p)
		}
		rows.Close()
	}

	if f.Peer == nil || *f.Peer == model.PeerAS {
		q := `SELECT ap.id, ap.vlan_id, ap.as_id, ap.peer_as_id, ap.accept
			FROM as_peer_policies ap WHERE ap.as_id = ?`
		args := []any{f.ASID}
		q, args = appendCommon(q, args, f, "ap.")
		if f.Peer != nil && f.PeerASN != 0 {
			q += ` AND ap.peer_as_id = (SELECT id FROM ases WHERE asn = ?)`
			args = append(args, int64(f.PeerASN))
		}
		rows, err := s.db.QueryContext(ctx, q+" ORDER BY ap.id", args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var p model.Policy
			p.Peer = model.PeerAS
			if err := rows.Scan(&p.ID, &p.VLANID, &p.ASID, &p.PeerASID, &p.Accept); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, p)
		}
		rows.Close()
	}

	if f.Peer == nil || *f.Peer == model.PeerOwner {
		q := `SELECT op.id, op.vlan_id, op.as_id, op.peer_owner_id, op.accept
			FROM owner_peer_policies op WHERE op.as_id = ?`
		args := []any{f.ASID}
		q, args = appendCommon(q, args, f, "op.")
		if f.Peer != nil && f.PeerOwner != "" {
			q += ` AND op.peer_owner_id = (SELECT id FROM owners WHERE name = ?)`
			args = append(args, f.PeerOwner)
		}
		rows, err := s.db.QueryContext(ctx, q+" ORDER BY op.id", args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var p model.Policy
			p.Peer = model.PeerOwner
			if err := rows.Scan(&p.ID, &p.VLANID, &p.ASID, &p.PeerOwnerID, &p.Accept); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, p)
		}
		rows.Close()
	}

	if f.Peer == nil || *f.Peer == model.PeerISD {
		q := `SELECT ip.id, ip.vlan_id, ip.as_id, ip.peer_isd_id, ip.accept
			FROM isd_peer_policies ip WHERE ip.as_id = ?`
		args := []any{f.ASID}
		q, args = appendCommon(q, args, f, "ip.")
		if f.Peer != nil && f.PeerISD != 0 {
			q += ` AND ip.peer_isd_id = ?`
			args = append(args, f.PeerISD)
		}
		rows, err := s.db.QueryContext(ctx, q+" ORDER BY ip.id", args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var p model.Policy
			p.Peer = model.PeerISD
			if err := rows.Scan(&p.ID, &p.VLANID, &p.ASID, &p.PeerISDID, &p.Accept); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, p)
		}
		rows.Close()
	}

	return out, nil
}

func appendCommon(q string, args []any, f PolicyFilter, prefix string) (string, []any) {
	if f.VLANID != nil {
		q += " AND " + prefix + "vlan_id = ?"
		args = append(args, *f.VLANID)
	}
	if f.Accept != nil {
		q += " AND " + prefix + "accept = ?"
		args = append(args, *f.Accept)
	}
	return q, args
}

// --- Accepted peers ------------------------------------------------------

// AcceptedPeersOf returns the ids of ASes asID currently accepts on vlanID.
func (s *Store) AcceptedPeersOf(ctx context.Context, asID, vlanID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_id FROM accepted_peers WHERE as_id = ? AND vlan_id = ?`, asID, vlanID)
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

// Accepts reports whether asID currently accepts peerID on vlanID.
func (s *Store) Accepts(ctx context.Context, asID, peerID, vlanID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM accepted_peers WHERE as_id = ? AND peer_id = ? AND vlan_id = ?`,
		asID, peerID, vlanID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ReplaceAcceptedPeers rewrites the AcceptedPeer rows for (asID, vlanID) to
// exactly newPeers, issuing only the delete/insert statements needed for the
// minimal diff against the current set.
func (t *Tx) ReplaceAcceptedPeers(ctx context.Context, asID, vlanID int64, current, newPeers []int64) error {
	cur := toSet(current)
	want := toSet(newPeers)

	for id := range cur {
		if !want[id] {
			if _, err := t.tx.ExecContext(ctx,
				`DELETE FROM accepted_peers WHERE as_id = ? AND peer_id = ? AND vlan_id = ?`,
				asID, id, vlanID); err != nil {
				return err
			}
		}
	}
	for id := range want {
		if !cur[id] {
			if _, err := t.tx.ExecContext(ctx,
				`INSERT INTO accepted_peers (as_id, peer_id, vlan_id) VALUES (?, ?, ?)`,
				asID, id, vlanID); err != nil {
				return err
			}
		}
	}
	return nil
}
