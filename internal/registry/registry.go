// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package registry tracks the live gRPC streams peering clients hold open
// and arbitrates which connected client of an AS may write policies on each
// VLAN (§4.3). It is a process-lifetime singleton keyed by ASN, guarded by
// its own locks; it never touches the store.
package registry

import (
	"errors"
	"sync"

	"netsys.dev/peeringcoord/internal/logging"
	"netsys.dev/peeringcoord/internal/metrics"
	"netsys.dev/peeringcoord/internal/pb"
)

// outboundQueueCapacity bounds the per-connection send queue. When a
// client's queue is full its connection is marked closed and every later
// Send to it fails, rather than let the queue grow without bound; the
// client's stream is not ended by this.
const outboundQueueCapacity = 256

// ErrQueueFull is returned by Connection.Send when a client's outbound
// queue is saturated.
var ErrQueueFull = errors.New("registry: client send queue full")

// ErrAlreadyConnected is returned by ASConnections.Connect when the named
// client already has a live connection.
var ErrAlreadyConnected = errors.New("registry: client already connected")

// Connection represents one open StreamChannel call from a peering client.
// The gRPC handler goroutine drains Outbound() and passes the arbitration
// requests it receives from the client to internal/ctlplane's
// handleArbitration; Deliver applies a request to the elections directly,
// without that validation. Every other goroutine that wants to push a
// message to this client calls Send.
type Connection struct {
	Name string

	asConns *ASConnections
	queue   chan *pb.StreamMessageResponse
	closed  chan struct{}
	once    sync.Once
}

func newConnection(name string, owner *ASConnections) *Connection {
	return &Connection{
		Name:    name,
		asConns: owner,
		queue:   make(chan *pb.StreamMessageResponse, outboundQueueCapacity),
		closed:  make(chan struct{}),
	}
}

// Send enqueues msg for delivery to the client. It never blocks: if the
// queue is full the connection is marked closed and ErrQueueFull is
// returned, and so is every later Send on a closed connection, matching the
// "drop a slow client rather than stall the resolver" rule.
func (c *Connection) Send(msg *pb.StreamMessageResponse) error {
	select {
	case <-c.closed:
		return ErrQueueFull
	default:
	}
	select {
	case c.queue <- msg:
		return nil
	case <-c.closed:
		return ErrQueueFull
	default:
		c.closeOnce()
		return ErrQueueFull
	}
}

// Outbound returns the channel the gRPC handler goroutine should range over
// to obtain messages queued for this client. The channel is never closed;
// teardown closes a separate channel that only Send observes.
func (c *Connection) Outbound() <-chan *pb.StreamMessageResponse {
	return c.queue
}

// Deliver handles one request received from the client on the stream.
func (c *Connection) Deliver(req *pb.StreamMessageRequest) {
	if req.Arbitration != nil {
		c.asConns.arbitrate(c, req.Arbitration)
	}
}

func (c *Connection) closeOnce() {
	c.once.Do(func() { close(c.closed) })
}

// electionEntry is one client's most recently announced election id on one
// VLAN.
type electionEntry struct {
	client     string
	electionID int64
}

// ASConnections aggregates every live Connection belonging to a single AS
// and runs primary-client arbitration independently per VLAN.
type ASConnections struct {
	asn uint64

	mu          sync.Mutex
	connections map[string]*Connection
	election    map[string]map[string]int64 // vlan -> client -> election id
	primary     map[string]string           // vlan -> primary client
	logger      *logging.Logger
}

func newASConnections(asn uint64, logger *logging.Logger) *ASConnections {
	return &ASConnections{
		asn:         asn,
		connections: make(map[string]*Connection),
		election:    make(map[string]map[string]int64),
		primary:     make(map[string]string),
		logger:      logger,
	}
}

// Connect registers a new connection for client name. The caller must have
// already verified the client exists and is who it claims to be.
func (a *ASConnections) Connect(name string) (*Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.connections[name]; exists {
		return nil, ErrAlreadyConnected
	}
	conn := newConnection(name, a)
	a.connections[name] = conn
	return conn, nil
}

// Disconnect removes a connection, dropping it from every VLAN's election
// and re-arbitrating any VLAN where it held primary status.
func (a *ASConnections) Disconnect(conn *Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for vlan, entries := range a.election {
		delete(entries, conn.Name)
		if a.primary[vlan] == conn.Name {
			a.arbitrateLocked(vlan)
		}
	}
	delete(a.connections, conn.Name)
	conn.closeOnce()
}

// Connections returns a snapshot of the currently connected clients.
func (a *ASConnections) Connections() []*Connection {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*Connection, 0, len(a.connections))
	for _, c := range a.connections {
		out = append(out, c)
	}
	return out
}

// Empty reports whether no client of this AS is currently connected.
func (a *ASConnections) Empty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.connections) == 0
}

// arbitrate processes one arbitration request from requester directly off
// the stream. A bare HasVlan:false request can't be expanded here — this
// package has no store access to resolve which VLANs requester has an
// interface on — so it is a no-op; the gRPC handler performs that
// expansion and VLAN-membership validation before calling Vote (see
// internal/ctlplane's handleArbitration).
func (a *ASConnections) arbitrate(requester *Connection, update *pb.ArbitrationUpdate) {
	if !update.HasVlan {
		return
	}
	a.Vote(requester, update.Vlan, update.ElectionId)
}

// Vote records requester's election id for vlan and re-arbitrates that
// VLAN's primary. The caller is responsible for validating that requester
// is a known client with an interface on vlan; this package has no store
// access to check that itself.
func (a *ASConnections) Vote(requester *Connection, vlan string, electionID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.election[vlan] == nil {
		a.election[vlan] = make(map[string]int64)
	}
	a.election[vlan][requester.Name] = electionID
	a.arbitrateLocked(vlan)
}

// RemoveInterface drops client's entry in vlan's election, e.g. because its
// last interface on that VLAN was deleted, and re-arbitrates if necessary.
func (a *ASConnections) RemoveInterface(client, vlan string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entries, ok := a.election[vlan]; ok {
		delete(entries, client)
	}
	if a.primary[vlan] == client {
		a.arbitrateLocked(vlan)
	}
}

// IsPrimary reports whether client is the primary client for vlan. If vlan
// is empty, it reports whether client is primary on every VLAN that has an
// election in this AS (false if there is none).
func (a *ASConnections) IsPrimary(client, vlan string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if vlan != "" {
		return a.primary[vlan] == client
	}
	if len(a.primary) == 0 {
		return false
	}
	for _, p := range a.primary {
		if p != client {
			return false
		}
	}
	return true
}

// arbitrateLocked picks the primary client for vlan (highest election id,
// ties broken by the lexicographically smallest client name so the result
// does not depend on map iteration order) and notifies every client with a
// vote cast in that VLAN. Caller must hold a.mu.
func (a *ASConnections) arbitrateLocked(vlan string) {
	entries := a.election[vlan]

	var primary string
	var primaryID int64
	first := true
	for client, id := range entries {
		if first || id > primaryID || (id == primaryID && client < primary) {
			primary, primaryID = client, id
			first = false
		}
	}
	a.primary[vlan] = primary

	for client, id := range entries {
		status := pb.ArbitrationStatus_NOT_PRIMARY
		if client == primary {
			status = pb.ArbitrationStatus_PRIMARY
		}
		conn, ok := a.connections[client]
		if !ok {
			continue
		}
		msg := &pb.StreamMessageResponse{Arbitration: &pb.ArbitrationUpdate{
			HasVlan: true, Vlan: vlan, ElectionId: id, Status: status,
		}}
		if err := conn.Send(msg); err != nil {
			a.logger.Warn("arbitration update dropped", "asn", a.asn, "client", client, "vlan", vlan, "error", err)
		}
	}
}

// Registry is the process-wide, ASN-keyed table of ASConnections.
type Registry struct {
	mu     sync.Mutex
	ases   map[uint64]*ASConnections
	logger *logging.Logger
}

func New(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default().WithComponent("registry")
	}
	return &Registry{ases: make(map[uint64]*ASConnections), logger: logger}
}

// Connect registers a new connection for (asn, client), creating the AS's
// connection set on first use and reaping it if Connect fails.
func (r *Registry) Connect(asn uint64, client string) (*Connection, error) {
	r.mu.Lock()
	asConns, ok := r.ases[asn]
	if !ok {
		asConns = newASConnections(asn, r.logger)
		r.ases[asn] = asConns
	}
	r.mu.Unlock()

	conn, err := asConns.Connect(client)
	if err != nil {
		r.reapIfEmpty(asn, asConns)
		return nil, err
	}
	return conn, nil
}

// Disconnect tears down conn and reaps its AS's entry if it was the last
// connection.
func (r *Registry) Disconnect(asn uint64, conn *Connection) {
	r.mu.Lock()
	asConns, ok := r.ases[asn]
	r.mu.Unlock()
	if !ok {
		return
	}
	asConns.Disconnect(conn)
	r.reapIfEmpty(asn, asConns)
}

func (r *Registry) reapIfEmpty(asn uint64, asConns *ASConnections) {
	if !asConns.Empty() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.ases[asn]; ok && current == asConns && current.Empty() {
		delete(r.ases, asn)
	}
}

// Get returns the ASConnections for asn, or nil if no client is connected.
func (r *Registry) Get(asn uint64) *ASConnections {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ases[asn]
}

// HasPolicyWritePermission reports whether client is the primary client of
// asn on vlan (or, if vlan is empty, on every VLAN with an election in asn).
func (r *Registry) HasPolicyWritePermission(asn uint64, client, vlan string) bool {
	asConns := r.Get(asn)
	if asConns == nil {
		return false
	}
	return asConns.IsPrimary(client, vlan)
}

// SendLinkUpdate fans a LinkUpdate out to every connected client of asn.
func (r *Registry) SendLinkUpdate(asn uint64, update *pb.LinkUpdate) {
	asConns := r.Get(asn)
	if asConns == nil {
		return
	}
	msg := &pb.StreamMessageResponse{LinkUpdate: update}
	for _, conn := range asConns.Connections() {
		if err := conn.Send(msg); err != nil {
			r.logger.Warn("link update dropped", "asn", asn, "client", conn.Name, "error", err)
			metrics.Get().NotificationDrop.WithLabelValues("link_update").Inc()
		}
	}
}

// SendAsyncError fans an AsyncError out to every connected client of asn.
func (r *Registry) SendAsyncError(asn uint64, asyncErr *pb.AsyncError) {
	asConns := r.Get(asn)
	if asConns == nil {
		return
	}
	msg := &pb.StreamMessageResponse{Error: asyncErr}
	for _, conn := range asConns.Connections() {
		if err := conn.Send(msg); err != nil {
			r.logger.Warn("async error dropped", "asn", asn, "client", conn.Name, "error", err)
			metrics.Get().NotificationDrop.WithLabelValues("async_error").Inc()
		}
	}
}

// ConnectionCount returns the number of live client connections across
// every AS, for metrics polling.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, asConns := range r.ases {
		n += len(asConns.Connections())
	}
	return n
}

// ASCount returns the number of ASes with at least one live connection.
func (r *Registry) ASCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ases)
}

// RemoveInterface notifies the registry that client lost its last
// interface on vlan, which may force re-arbitration.
func (r *Registry) RemoveInterface(asn uint64, client, vlan string) {
	asConns := r.Get(asn)
	if asConns == nil {
		return
	}
	asConns.RemoveInterface(client, vlan)
}
