// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the relational persistence layer for the coordinator's
// data model (§3): owners, ISDs, ASes, VLANs, peering clients, interfaces,
// links, accepted peers and the four policy tables. All multi-statement
// writes run inside a Tx so the resolver's reconciliation step is atomic
// with the policy write that triggered it.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"netsys.dev/peeringcoord/internal/logging"
	"netsys.dev/peeringcoord/internal/model"
)

// Store holds the database handle and logger shared by every query helper.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open opens or creates the coordinator's SQLite database at path and
// ensures the schema exists.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default().WithComponent("store")
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open coordinator db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS owners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		long_name TEXT NOT NULL DEFAULT '',
		contact TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS isds (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS ases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asn INTEGER NOT NULL UNIQUE,
		isd_id INTEGER NOT NULL REFERENCES isds(id),
		owner_id INTEGER NOT NULL REFERENCES owners(id),
		is_core INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_ases_owner ON ases(owner_id);
	CREATE INDEX IF NOT EXISTS idx_ases_isd ON ases(isd_id);

	CREATE TABLE IF NOT EXISTS vlans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		long_name TEXT NOT NULL DEFAULT '',
		ip_network TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS peering_clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		as_id INTEGER NOT NULL REFERENCES ases(id),
		name TEXT NOT NULL DEFAULT 'default',
		secret_token TEXT NOT NULL,
		UNIQUE(as_id, name)
	);

	CREATE TABLE IF NOT EXISTS interfaces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		peering_client_id INTEGER NOT NULL REFERENCES peering_clients(id),
		vlan_id INTEGER NOT NULL REFERENCES vlans(id),
		public_ip TEXT NOT NULL,
		first_port INTEGER NOT NULL DEFAULT 50500,
		last_port INTEGER NOT NULL DEFAULT 51000,
		UNIQUE(vlan_id, public_ip)
	);
	CREATE INDEX IF NOT EXISTS idx_interfaces_client ON interfaces(peering_client_id);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interface_a INTEGER NOT NULL REFERENCES interfaces(id),
		port_a INTEGER NOT NULL,
		interface_b INTEGER NOT NULL REFERENCES interfaces(id),
		port_b INTEGER NOT NULL,
		link_type INTEGER NOT NULL,
		UNIQUE(interface_a, interface_b),
		CHECK (interface_a < interface_b)
	);
	CREATE INDEX IF NOT EXISTS idx_links_a ON links(interface_a);
	CREATE INDEX IF NOT EXISTS idx_links_b ON links(interface_b);

	CREATE TABLE IF NOT EXISTS accepted_peers (
		as_id INTEGER NOT NULL REFERENCES ases(id),
		peer_id INTEGER NOT NULL REFERENCES ases(id),
		vlan_id INTEGER NOT NULL REFERENCES vlans(id),
		PRIMARY KEY (as_id, peer_id, vlan_id)
	);
	CREATE INDEX IF NOT EXISTS idx_accepted_peers_peer ON accepted_peers(peer_id, vlan_id);

	CREATE TABLE IF NOT EXISTS default_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vlan_id INTEGER NOT NULL REFERENCES vlans(id),
		as_id INTEGER NOT NULL REFERENCES ases(id),
		accept INTEGER NOT NULL,
		UNIQUE(vlan_id, as_id)
	);

	CREATE TABLE IF NOT EXISTS as_peer_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vlan_id INTEGER NOT NULL REFERENCES vlans(id),
		as_id INTEGER NOT NULL REFERENCES ases(id),
		peer_as_id INTEGER NOT NULL REFERENCES ases(id),
		accept INTEGER NOT NULL,
		UNIQUE(vlan_id, as_id, peer_as_id)
	);

	CREATE TABLE IF NOT EXISTS isd_peer_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vlan_id INTEGER NOT NULL REFERENCES vlans(id),
		as_id INTEGER NOT NULL REFERENCES ases(id),
		peer_isd_id INTEGER NOT NULL REFERENCES isds(id),
		accept INTEGER NOT NULL,
		UNIQUE(vlan_id, as_id, peer_isd_id)
	);

	CREATE TABLE IF NOT EXISTS owner_peer_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vlan_id INTEGER NOT NULL REFERENCES vlans(id),
		as_id INTEGER NOT NULL REFERENCES ases(id),
		peer_owner_id INTEGER NOT NULL REFERENCES owners(id),
		accept INTEGER NOT NULL,
		UNIQUE(vlan_id, as_id, peer_owner_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Tx wraps a *sql.Tx and accumulates notifications produced by the resolver
// during the transaction. Notifications are only visible to callers once
// Commit returns nil; a Rollback discards them.
type Tx struct {
	tx      *sql.Tx
	s       *Store
	pending []model.Notification
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, s: s}, nil
}

// Notify appends n to the set of notifications that will be returned once
// the transaction commits. It never blocks or touches the registry
// directly, keeping the resolver's DB transaction independent of any
// client's outbound queue.
func (t *Tx) Notify(n model.Notification) {
	t.pending = append(t.pending, n)
}

// Commit commits the transaction and, on success, returns the notifications
// accumulated during it. On failure the transaction is left rolled back (per
// database/sql semantics) and no notifications are returned.
func (t *Tx) Commit() ([]model.Notification, error) {
	if err := t.tx.Commit(); err != nil {
		return nil, err
	}
	return t.pending, nil
}

// Rollback aborts the transaction, discarding any pending notifications.
func (t *Tx) Rollback() error {
	t.pending = nil
	return t.tx.Rollback()
}
