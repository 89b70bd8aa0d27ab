// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/netip"

	cerrors "netsys.dev/peeringcoord/internal/errors"
	"netsys.dev/peeringcoord/internal/model"
)

// ErrNotFound is returned (wrapped with cerrors.KindNotFound) when a lookup
// finds no matching row.
var ErrNotFound = errors.New("not found")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return cerrors.Wrap(ErrNotFound, cerrors.KindNotFound, "not found")
	}
	return err
}

// --- Owner -----------------------------------------------------------------

func (s *Store) GetOwnerByName(ctx context.Context, name string) (*model.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx,
		`SELECT id, name, long_name, contact FROM owners WHERE name = ?`, name))
}

func (s *Store) GetOwnerByASN(ctx context.Context, asn uint64) (*model.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx, `
		SELECT o.id, o.name, o.long_name, o.contact
		FROM owners o JOIN ases a ON a.owner_id = o.id
		WHERE a.asn = ?`, int64(asn)))
}

func (s *Store) GetOwnerByNameAndASN(ctx context.Context, name string, asn uint64) (*model.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx, `
		SELECT o.id, o.name, o.long_name, o.contact
		FROM owners o JOIN ases a ON a.owner_id = o.id
		WHERE o.name = ? AND a.asn = ?`, name, int64(asn)))
}

func (s *Store) GetOwnerByID(ctx context.Context, id int64) (*model.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx,
		`SELECT id, name, long_name, contact FROM owners WHERE id = ?`, id))
}

func scanOwner(row *sql.Row) (*model.Owner, error) {
	var o model.Owner
	if err := row.Scan(&o.ID, &o.Name, &o.LongName, &o.Contact); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// SearchOwnersByLongName returns owners whose long_name contains substr,
// case-insensitively, ordered by id for deterministic output.
func (s *Store) SearchOwnersByLongName(ctx context.Context, substr string) ([]model.Owner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, long_name, contact FROM owners
		WHERE long_name LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY id`, substr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []model.Owner
	for rows.Next() {
		var o model.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.LongName, &o.Contact); err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// OwnerASNs returns the ASNs of every AS owned by ownerID, ascending.
func (s *Store) OwnerASNs(ctx context.Context, ownerID int64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asn FROM ases WHERE owner_id = ? ORDER BY asn ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var asns []uint64
	for rows.Next() {
		var asn int64
		if err := rows.Scan(&asn); err != nil {
			return nil, err
		}
		asns = append(asns, uint64(asn))
	}
	return asns, rows.Err()
}

// CreateOwner inserts a new Owner. Owner/ISD/AS/VLAN/PeeringClient/Interface
// rows are administered externally (spec.md's admin surface is out of
// scope); these constructors exist for seeding and tests.
func (s *Store) CreateOwner(ctx context.Context, o model.Owner) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO owners (name, long_name, contact) VALUES (?, ?, ?)`, o.Name, o.LongName, o.Contact)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// --- ISD -----------------------------------------------------------------

func (s *Store) CreateISD(ctx context.Context, isd model.ISD) (int32, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO isds (id, name) VALUES (?, ?)`, isd.ID, isd.Name)
	if err != nil {
		return 0, err
	}
	return isd.ID, nil
}

// --- AS ----------------------------------------------------------------

func (s *Store) GetASByASN(ctx context.Context, asn uint64) (*model.AS, error) {
	return scanAS(s.db.QueryRowContext(ctx,
		`SELECT id, asn, isd_id, owner_id, is_core, name FROM ases WHERE asn = ?`, int64(asn)))
}

func (s *Store) GetASByID(ctx context.Context, id int64) (*model.AS, error) {
	return scanAS(s.db.QueryRowContext(ctx,
		`SELECT id, asn, isd_id, owner_id, is_core, name FROM ases WHERE id = ?`, id))
}

func scanAS(row *sql.Row) (*model.AS, error) {
	var a model.AS
	var asn int64
	if err := row.Scan(&a.ID, &asn, &a.ISDID, &a.Owner, &a.IsCore, &a.Name); err != nil {
		return nil, notFound(err)
	}
	a.ASN = uint64(asn)
	return &a, nil
}

// CreateAS inserts a new AS.
func (s *Store) CreateAS(ctx context.Context, a model.AS) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ases (asn, isd_id, owner_id, is_core, name) VALUES (?, ?, ?, ?, ?)`,
		int64(a.ASN), a.ISDID, a.Owner, a.IsCore, a.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ASExists reports whether an AS with the given ASN is registered.
func (s *Store) ASExists(ctx context.Context, asn uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ases WHERE asn = ?`, int64(asn)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// --- VLAN ----------------------------------------------------------------

func (s *Store) GetVLANByName(ctx context.Context, name string) (*model.VLAN, error) {
	return scanVLAN(s.db.QueryRowContext(ctx,
		`SELECT id, name, long_name, ip_network FROM vlans WHERE name = ?`, name))
}

func (s *Store) GetVLANByID(ctx context.Context, id int64) (*model.VLAN, error) {
	return scanVLAN(s.db.QueryRowContext(ctx,
		`SELECT id, name, long_name, ip_network FROM vlans WHERE id = ?`, id))
}

func scanVLAN(row *sql.Row) (*model.VLAN, error) {
	var v model.VLAN
	var network string
	if err := row.Scan(&v.ID, &v.Name, &v.LongName, &network); err != nil {
		return nil, notFound(err)
	}
	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindInternal, "corrupt vlan ip_network")
	}
	v.IPNetwork = prefix
	return &v, nil
}

// CreateVLAN inserts a new VLAN.
func (s *Store) CreateVLAN(ctx context.Context, v model.VLAN) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vlans (name, long_name, ip_network) VALUES (?, ?, ?)`,
		v.Name, v.LongName, v.IPNetwork.String())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ConnectedVLANs returns the names of every VLAN on which asID has at least
// one interface, used by SetPolicies's reconciliation sweep, which runs
// inside its transaction before the commit. Policy validation uses
// IsConnectedToVLAN instead.
func (s *Store) ConnectedVLANs(ctx context.Context, asID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT v.name FROM vlans v
		JOIN interfaces i ON i.vlan_id = v.id
		JOIN peering_clients pc ON pc.id = i.peering_client_id
		WHERE pc.as_id = ?
		ORDER BY v.name`, asID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// IsConnectedToVLAN reports whether asID has at least one interface on vlanID.
func (s *Store) IsConnectedToVLAN(ctx context.Context, asID, vlanID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM interfaces i
		JOIN peering_clients pc ON pc.id = i.peering_client_id
		WHERE pc.as_id = ? AND i.vlan_id = ? LIMIT 1`, asID, vlanID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Members returns the ids of every AS with at least one interface on vlanID.
func (s *Store) Members(ctx context.Context, vlanID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT pc.as_id FROM interfaces i
		JOIN peering_clients pc ON pc.id = i.peering_client_id
		WHERE i.vlan_id = ?`, vlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- PeeringClient ---------------------------------------------------------

// GenerateSecretToken returns a fresh random 128-bit hex token, the
// credential a PeeringClient presents on every RPC.
func GenerateSecretToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateClient inserts a new PeeringClient.
func (s *Store) CreateClient(ctx context.Context, c model.PeeringClient) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO peering_clients (as_id, name, secret_token) VALUES (?, ?, ?)`,
		c.ASID, c.Name, c.SecretToken)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetClientByID(ctx context.Context, id int64) (*model.PeeringClient, error) {
	var c model.PeeringClient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, as_id, name, secret_token FROM peering_clients WHERE id = ?`, id).
		Scan(&c.ID, &c.ASID, &c.Name, &c.SecretToken)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetClient(ctx context.Context, asID int64, name string) (*model.PeeringClient, error) {
	var c model.PeeringClient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, as_id, name, secret_token FROM peering_clients WHERE as_id = ? AND name = ?`,
		asID, name).Scan(&c.ID, &c.ASID, &c.Name, &c.SecretToken)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) ClientExists(ctx context.Context, asn uint64, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM peering_clients pc JOIN ases a ON a.id = pc.as_id
		WHERE a.asn = ? AND pc.name = ?`, int64(asn), name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// --- Interface ---------------------------------------------------------

// CreateInterface inserts a new Interface.
func (s *Store) CreateInterface(ctx context.Context, i model.Interface) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interfaces (peering_client_id, vlan_id, public_ip, first_port, last_port)
		VALUES (?, ?, ?, ?, ?)`,
		i.PeeringClientID, i.VLANID, i.PublicIP.String(), i.FirstPort, i.LastPort)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetInterfaceByID(ctx context.Context, id int64) (*model.Interface, error) {
	var i model.Interface
	var ipStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, peering_client_id, vlan_id, public_ip, first_port, last_port
		FROM interfaces WHERE id = ?`, id).
		Scan(&i.ID, &i.PeeringClientID, &i.VLANID, &ipStr, &i.FirstPort, &i.LastPort)
	if err != nil {
		return nil, notFound(err)
	}
	i.PublicIP, _ = netip.ParseAddr(ipStr)
	return &i, nil
}

func (s *Store) GetInterfaceByVLANAndIP(ctx context.Context, vlanID int64, ip netip.Addr) (*model.Interface, error) {
	var i model.Interface
	var ipStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, peering_client_id, vlan_id, public_ip, first_port, last_port
		FROM interfaces WHERE vlan_id = ? AND public_ip = ?`, vlanID, ip.String()).
		Scan(&i.ID, &i.PeeringClientID, &i.VLANID, &ipStr, &i.FirstPort, &i.LastPort)
	if err != nil {
		return nil, notFound(err)
	}
	i.PublicIP, _ = netip.ParseAddr(ipStr)
	return &i, nil
}

func (s *Store) InterfacesOfClient(ctx context.Context, clientID int64) ([]model.Interface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, peering_client_id, vlan_id, public_ip, first_port, last_port
		FROM interfaces WHERE peering_client_id = ?`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterfaces(rows)
}

// InterfacesOfASOnVLAN returns every interface any client of asID has on vlanID.
func (s *Store) InterfacesOfASOnVLAN(ctx context.Context, asID, vlanID int64) ([]model.Interface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.peering_client_id, i.vlan_id, i.public_ip, i.first_port, i.last_port
		FROM interfaces i JOIN peering_clients pc ON pc.id = i.peering_client_id
		WHERE pc.as_id = ? AND i.vlan_id = ?`, asID, vlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterfaces(rows)
}

func scanInterfaces(rows *sql.Rows) ([]model.Interface, error) {
	var out []model.Interface
	for rows.Next() {
		var i model.Interface
		var ipStr string
		if err := rows.Scan(&i.ID, &i.PeeringClientID, &i.VLANID, &ipStr, &i.FirstPort, &i.LastPort); err != nil {
			return nil, err
		}
		i.PublicIP, _ = netip.ParseAddr(ipStr)
		out = append(out, i)
	}
	return out, rows.Err()
}

// SetInterfacePortRange persists a new port range on an interface.
func (s *Store) SetInterfacePortRange(ctx context.Context, interfaceID int64, first, last uint32) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE interfaces SET first_port = ?, last_port = ? WHERE id = ?`, first, last, interfaceID)
	return err
}

// SetInterfacePortRange is the transactional counterpart, used by
// SetPortRange so the range update and any link recreation it triggers
// commit or roll back together.
func (t *Tx) SetInterfacePortRange(ctx context.Context, interfaceID int64, first, last uint32) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE interfaces SET first_port = ?, last_port = ? WHERE id = ?`, first, last, interfaceID)
	return err
}

// UsedIPsInVLAN returns every public_ip currently assigned in vlanID.
func (s *Store) UsedIPsInVLAN(ctx context.Context, vlanID int64) ([]netip.Addr, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT public_ip FROM interfaces WHERE vlan_id = ?`, vlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []netip.Addr
	for rows.Next() {
		var ipStr string
		if err := rows.Scan(&ipStr); err != nil {
			return nil, err
		}
		if ip, err := netip.ParseAddr(ipStr); err == nil {
			out = append(out, ip)
		}
	}
	return out, rows.Err()
}

// UsedPortsOnInterface returns every port used by a Link incident on
// interfaceID (either side), the per-interface allocation scope.
func (s *Store) UsedPortsOnInterface(ctx context.Context, interfaceID int64) ([]uint32, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT port_a FROM links WHERE interface_a = ?
		UNION ALL
		SELECT port_b FROM links WHERE interface_b = ?`, interfaceID, interfaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var p uint32
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
