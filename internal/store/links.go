// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"

	"netsys.dev/peeringcoord/internal/model"
)

// CreateLink persists a Link inside tx, canonicalising (interfaceA, portA)
// and (interfaceB, portB) so the lower interface ID is always stored as
// interface_a. This is what makes the links.UNIQUE(interface_a, interface_b)
// constraint an unordered-uniqueness guarantee rather than the ordered one
// the original schema only enforced.
func (t *Tx) CreateLink(ctx context.Context, ifaceA, portA, ifaceB, portB int64, linkType model.LinkType) (model.Link, error) {
	if ifaceA > ifaceB {
		ifaceA, ifaceB = ifaceB, ifaceA
		portA, portB = portB, portA
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO links (interface_a, port_a, interface_b, port_b, link_type)
		VALUES (?, ?, ?, ?, ?)`, ifaceA, portA, ifaceB, portB, int(linkType))
	if err != nil {
		return model.Link{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Link{}, err
	}
	return model.Link{
		ID: id, InterfaceA: ifaceA, PortA: uint32(portA),
		InterfaceB: ifaceB, PortB: uint32(portB), Type: linkType,
	}, nil
}

func (t *Tx) DeleteLink(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	return err
}

// LinksBetweenInterfaceSets returns every Link whose two interfaces are one
// from eachSet, used when tearing down all links between two ASes on a VLAN.
func (s *Store) LinksBetweenInterfaceSets(ctx context.Context, setA, setB []int64) ([]model.Link, error) {
	if len(setA) == 0 || len(setB) == 0 {
		return nil, nil
	}
	links, err := s.linksTouching(ctx, setA)
	if err != nil {
		return nil, err
	}
	bSet := toSet(setB)
	var out []model.Link
	for _, l := range links {
		if bSet[l.InterfaceA] || bSet[l.InterfaceB] {
			out = append(out, l)
		}
	}
	return out, nil
}

func toSet(ids []int64) map[int64]bool {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func (s *Store) linksTouching(ctx context.Context, ifaceIDs []int64) ([]model.Link, error) {
	aSet := toSet(ifaceIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, interface_a, port_a, interface_b, port_b, link_type FROM links`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		if aSet[l.InterfaceA] || aSet[l.InterfaceB] {
			out = append(out, l)
		}
	}
	return out, rows.Err()
}

// LinksOnInterface returns every Link incident on interfaceID.
func (s *Store) LinksOnInterface(ctx context.Context, interfaceID int64) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, interface_a, port_a, interface_b, port_b, link_type
		FROM links WHERE interface_a = ? OR interface_b = ?`, interfaceID, interfaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LinksOfClient returns every Link incident on any interface belonging to
// clientID.
func (s *Store) LinksOfClient(ctx context.Context, clientID int64) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.interface_a, l.port_a, l.interface_b, l.port_b, l.link_type
		FROM links l
		JOIN interfaces ia ON ia.id = l.interface_a
		JOIN interfaces ib ON ib.id = l.interface_b
		WHERE ia.peering_client_id = ? OR ib.peering_client_id = ?`, clientID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLink(rows *sql.Rows) (model.Link, error) {
	var l model.Link
	var lt int
	if err := rows.Scan(&l.ID, &l.InterfaceA, &l.PortA, &l.InterfaceB, &l.PortB, &lt); err != nil {
		return model.Link{}, err
	}
	l.Type = model.LinkType(lt)
	return l, nil
}
