// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// PeeringServer implements the Peering gRPC service (§4.4): the persistent
// StreamChannel every client holds open, policy CRUD, bulk policy
// replacement, and interface port-range configuration. Every mutating RPC
// runs its store writes and resolver reconciliation inside a single
// transaction, committing only once, and fans out the resulting
// notifications to the registry after commit.
package ctlplane

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strconv"

	"netsys.dev/peeringcoord/internal/audit"
	"netsys.dev/peeringcoord/internal/auth"
	cerrors "netsys.dev/peeringcoord/internal/errors"
	"netsys.dev/peeringcoord/internal/logging"
	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/pb"
	"netsys.dev/peeringcoord/internal/registry"
	"netsys.dev/peeringcoord/internal/resolver"
	"netsys.dev/peeringcoord/internal/store"
)

// PeeringServer implements pb.PeeringServer against a Store, Resolver and
// Registry.
type PeeringServer struct {
	pb.UnimplementedPeeringServer

	store    *store.Store
	resolver *resolver.Resolver
	registry *registry.Registry
	audit    *audit.Logger
	logger   *logging.Logger
}

func NewPeeringServer(s *store.Store, r *resolver.Resolver, reg *registry.Registry, logger *logging.Logger) *PeeringServer {
	if logger == nil {
		logger = logging.Default().WithComponent("ctlplane")
	}
	return &PeeringServer{store: s, resolver: r, registry: reg, audit: audit.NewLogger(logger), logger: logger}
}

func grpcErr(err error) error {
	if err == nil {
		return nil
	}
	return cerrors.GRPCStatus(err).Err()
}

func identityOf(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, cerrors.New(cerrors.KindUnauthenticated, "missing identity")
	}
	return id, nil
}

// dispatch fans the notifications a committed transaction produced out to
// every connected client, after the transaction they came from is durable.
func (s *PeeringServer) dispatch(notifications []model.Notification) {
	for _, n := range notifications {
		switch {
		case n.Link != nil:
			s.registry.SendLinkUpdate(n.Link.ASN, linkNotificationToPB(n.Link))
		case n.Error != nil:
			s.registry.SendAsyncError(n.Error.ASN, &pb.AsyncError{
				Code:    pb.AsyncErrorCode_LINK_CREATION_FAILED,
				Message: n.Error.Message,
			})
		}
	}
}

// policyPeerDesc renders a wire Policy's peer target for an audit log line,
// without the store round-trip modelPolicyToPB needs to resolve it fully.
func policyPeerDesc(p *pb.Policy) string {
	switch p.Peer {
	case pb.PeerKind_PEER_ASN:
		return "asn:" + p.PeerAsn
	case pb.PeerKind_PEER_OWNER:
		return "owner:" + p.PeerOwner
	case pb.PeerKind_PEER_ISD:
		return "isd:" + p.PeerIsd
	default:
		return "everyone"
	}
}

func linkNotificationToPB(n *model.LinkNotification) *pb.LinkUpdate {
	t := pb.LinkUpdateType_CREATE
	if !n.Create {
		t = pb.LinkUpdateType_DESTROY
	}
	return &pb.LinkUpdate{
		Type:     t,
		LinkType: pb.LinkUpdateLinkType(n.Type),
		PeerAsn:  model.FormatASN(n.PeerASN),
		Local:    &pb.Endpoint{Ip: n.LocalIP.String(), Port: n.LocalPort},
		Remote:   &pb.Endpoint{Ip: n.RemoteIP.String(), Port: n.RemotePort},
	}
}

// --- policy <-> wire conversion --------------------------------------------

// pbPolicyToModel resolves a wire Policy's string-keyed peer target into
// the store's surrogate ids, rejecting an AS-peer policy that targets the
// declaring AS itself (§3) and rejecting a VLAN asID has no interface on
// (§3's "a policy may only reference a VLAN its asys is connected to").
func (s *PeeringServer) pbPolicyToModel(ctx context.Context, p *pb.Policy, asID, vlanID int64) (model.Policy, error) {
	connected, err := s.store.IsConnectedToVLAN(ctx, asID, vlanID)
	if err != nil {
		return model.Policy{}, cerrors.Wrap(err, cerrors.KindInternal, "check vlan membership")
	}
	if !connected {
		return model.Policy{}, cerrors.New(cerrors.KindValidation, "asn is not connected to this vlan")
	}

	out := model.Policy{VLANID: vlanID, ASID: asID, Accept: p.Accept, Peer: model.PeerKind(p.Peer)}

	switch p.Peer {
	case pb.PeerKind_PEER_EVERYONE:
	case pb.PeerKind_PEER_ASN:
		peerASN, err := model.ParseASN(p.PeerAsn)
		if err != nil {
			return model.Policy{}, cerrors.Wrap(err, cerrors.KindValidation, "malformed peer asn")
		}
		peerAS, err := s.store.GetASByASN(ctx, peerASN)
		if err != nil {
			return model.Policy{}, cerrors.Wrap(err, cerrors.KindValidation, "unknown peer asn")
		}
		if peerAS.ID == asID {
			return model.Policy{}, cerrors.New(cerrors.KindValidation, "an AS-peer policy may not target its own AS")
		}
		out.PeerASID = peerAS.ID
	case pb.PeerKind_PEER_OWNER:
		peerOwner, err := s.store.GetOwnerByName(ctx, p.PeerOwner)
		if err != nil {
			return model.Policy{}, cerrors.Wrap(err, cerrors.KindValidation, "unknown peer owner")
		}
		out.PeerOwnerID = peerOwner.ID
	case pb.PeerKind_PEER_ISD:
		isdID, err := strconv.ParseInt(p.PeerIsd, 10, 32)
		if err != nil {
			return model.Policy{}, cerrors.Wrap(err, cerrors.KindValidation, "malformed peer isd")
		}
		out.PeerISDID = int32(isdID)
	default:
		return model.Policy{}, cerrors.New(cerrors.KindValidation, "unknown peer kind")
	}
	return out, nil
}

func (s *PeeringServer) modelPolicyToPB(ctx context.Context, p model.Policy) (*pb.Policy, error) {
	vlan, err := s.store.GetVLANByID(ctx, p.VLANID)
	if err != nil {
		return nil, err
	}
	asys, err := s.store.GetASByID(ctx, p.ASID)
	if err != nil {
		return nil, err
	}
	out := &pb.Policy{
		Vlan:   vlan.Name,
		Asn:    model.FormatASN(asys.ASN),
		Accept: p.Accept,
		Peer:   pb.PeerKind(p.Peer),
	}
	switch p.Peer {
	case model.PeerAS:
		peerAS, err := s.store.GetASByID(ctx, p.PeerASID)
		if err != nil {
			return nil, err
		}
		out.PeerAsn = model.FormatASN(peerAS.ASN)
	case model.PeerOwner:
		peerOwner, err := s.store.GetOwnerByID(ctx, p.PeerOwnerID)
		if err != nil {
			return nil, err
		}
		out.PeerOwner = peerOwner.Name
	case model.PeerISD:
		out.PeerIsd = strconv.Itoa(int(p.PeerISDID))
	}
	return out, nil
}

// --- StreamChannel ----------------------------------------------------------

// StreamChannel registers the caller with the registry, replays its
// pre-existing links as CREATE updates, then pumps client requests into the
// Connection and the Connection's outbound queue onto the stream until
// either side closes it.
func (s *PeeringServer) StreamChannel(stream pb.PeeringChannelServer) error {
	ctx := stream.Context()
	id, err := identityOf(ctx)
	if err != nil {
		return grpcErr(err)
	}

	conn, err := s.registry.Connect(id.ASN, id.Client)
	if err != nil {
		return grpcErr(cerrors.Wrap(err, cerrors.KindConflict, "client already has an open stream"))
	}
	defer s.registry.Disconnect(id.ASN, conn)

	if err := s.replayLinks(ctx, id, conn); err != nil {
		s.logger.Warn("failed to replay existing links", "asn", id.ASN, "client", id.Client, "error", err)
	}

	recvErr := make(chan error, 1)
	go func() {
		for {
			req, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			if req.Arbitration != nil {
				s.handleArbitration(ctx, id, conn, req.Arbitration)
			}
		}
	}()

	for {
		select {
		case err := <-recvErr:
			if err == io.EOF {
				return nil
			}
			return err
		case msg, ok := <-conn.Outbound():
			if !ok {
				return nil
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// handleArbitration validates one ArbitrationUpdate received from requester
// and, once validated, casts its vote(s) with the registry (§4.3). The
// registry package has no store access, so all VLAN resolution and
// membership checks happen here: if update names a VLAN, requester must
// have an interface on it; if it names none, the vote is expanded to every
// VLAN requester has an interface on. Either way, a requester with no
// matching interface gets back a single ArbitrationUpdate{status=ERROR}
// and the registry's election state is left untouched.
func (s *PeeringServer) handleArbitration(ctx context.Context, id auth.Identity, conn *registry.Connection, update *pb.ArbitrationUpdate) {
	asConns := s.registry.Get(id.ASN)
	if asConns == nil {
		return
	}

	sendError := func(vlan string, hasVlan bool) {
		err := conn.Send(&pb.StreamMessageResponse{Arbitration: &pb.ArbitrationUpdate{
			HasVlan: hasVlan, Vlan: vlan, Status: pb.ArbitrationStatus_ERROR,
		}})
		if err != nil {
			s.logger.Warn("arbitration error dropped", "asn", id.ASN, "client", id.Client, "error", err)
		}
	}

	ifaces, err := s.store.InterfacesOfClient(ctx, id.ClientID)
	if err != nil || len(ifaces) == 0 {
		sendError(update.Vlan, update.HasVlan)
		return
	}

	if update.HasVlan {
		vlan, err := s.store.GetVLANByName(ctx, update.Vlan)
		if err != nil {
			sendError(update.Vlan, true)
			return
		}
		hasInterface := false
		for _, iface := range ifaces {
			if iface.VLANID == vlan.ID {
				hasInterface = true
				break
			}
		}
		if !hasInterface {
			sendError(update.Vlan, true)
			return
		}
		asConns.Vote(conn, update.Vlan, update.ElectionId)
		return
	}

	seen := make(map[int64]bool)
	voted := false
	for _, iface := range ifaces {
		if seen[iface.VLANID] {
			continue
		}
		seen[iface.VLANID] = true
		vlan, err := s.store.GetVLANByID(ctx, iface.VLANID)
		if err != nil {
			continue
		}
		asConns.Vote(conn, vlan.Name, update.ElectionId)
		voted = true
	}
	if !voted {
		sendError("", false)
	}
}

// replayLinks sends a CREATE LinkUpdate for every Link already materialised
// on one of the caller's interfaces, so a reconnecting client recovers the
// full picture without waiting for the next resolver pass.
func (s *PeeringServer) replayLinks(ctx context.Context, id auth.Identity, conn *registry.Connection) error {
	ifaces, err := s.store.InterfacesOfClient(ctx, id.ClientID)
	if err != nil {
		return err
	}
	seen := make(map[int64]bool)
	for _, iface := range ifaces {
		links, err := s.store.LinksOnInterface(ctx, iface.ID)
		if err != nil {
			return err
		}
		for _, l := range links {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			update, err := s.buildLinkUpdate(ctx, l, iface.ID, pb.LinkUpdateType_CREATE)
			if err != nil {
				return err
			}
			if err := conn.Send(&pb.StreamMessageResponse{LinkUpdate: update}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *PeeringServer) buildLinkUpdate(ctx context.Context, l model.Link, myIfaceID int64, t pb.LinkUpdateType) (*pb.LinkUpdate, error) {
	ifaceA, err := s.store.GetInterfaceByID(ctx, l.InterfaceA)
	if err != nil {
		return nil, err
	}
	ifaceB, err := s.store.GetInterfaceByID(ctx, l.InterfaceB)
	if err != nil {
		return nil, err
	}

	local, remote := ifaceA, ifaceB
	localPort, remotePort := l.PortA, l.PortB
	if myIfaceID != ifaceA.ID {
		local, remote = ifaceB, ifaceA
		localPort, remotePort = l.PortB, l.PortA
	}

	remoteClient, err := s.store.GetClientByID(ctx, remote.PeeringClientID)
	if err != nil {
		return nil, err
	}
	peerAS, err := s.store.GetASByID(ctx, remoteClient.ASID)
	if err != nil {
		return nil, err
	}

	return &pb.LinkUpdate{
		Type:     t,
		LinkType: pb.LinkUpdateLinkType(l.Type),
		PeerAsn:  model.FormatASN(peerAS.ASN),
		Local:    &pb.Endpoint{Ip: local.PublicIP.String(), Port: localPort},
		Remote:   &pb.Endpoint{Ip: remote.PublicIP.String(), Port: remotePort},
	}, nil
}

// --- SetPortRange ------------------------------------------------------------

// SetPortRange updates an interface's allocatable port range. If the new
// range does not encompass the old one, every Link on that interface is
// torn down and the owning AS's links are recomputed so they get ports
// inside the new range (§9).
func (s *PeeringServer) SetPortRange(ctx context.Context, req *pb.PortRange) (*pb.Empty, error) {
	id, err := identityOf(ctx)
	if err != nil {
		return nil, grpcErr(err)
	}

	vlan, err := s.store.GetVLANByName(ctx, req.InterfaceVlan)
	if err != nil {
		return nil, grpcErr(err)
	}
	ip, err := netip.ParseAddr(req.InterfaceIp)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindValidation, "malformed interface ip"))
	}
	iface, err := s.store.GetInterfaceByVLANAndIP(ctx, vlan.ID, ip)
	if err != nil {
		return nil, grpcErr(err)
	}
	client, err := s.store.GetClientByID(ctx, iface.PeeringClientID)
	if err != nil {
		return nil, grpcErr(err)
	}
	if client.ASID != id.ASID {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "interface does not belong to the authenticated AS"))
	}
	if req.FirstPort > req.LastPort {
		return nil, grpcErr(cerrors.New(cerrors.KindValidation, "first_port must not exceed last_port"))
	}
	if !s.registry.HasPolicyWritePermission(id.ASN, id.Client, vlan.Name) {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "not the primary client for this vlan"))
	}

	recreate := !(req.FirstPort <= iface.FirstPort && req.LastPort >= iface.LastPort)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "begin transaction"))
	}
	if err := tx.SetInterfacePortRange(ctx, iface.ID, req.FirstPort, req.LastPort); err != nil {
		tx.Rollback()
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "update port range"))
	}

	if recreate {
		links, err := s.store.LinksOnInterface(ctx, iface.ID)
		if err != nil {
			tx.Rollback()
			return nil, grpcErr(err)
		}
		for _, l := range links {
			if err := tx.DeleteLink(ctx, l.ID); err != nil {
				tx.Rollback()
				return nil, grpcErr(err)
			}
		}
		if err := s.resolver.UpdateLinks(ctx, tx, vlan.ID, id.ASID); err != nil {
			tx.Rollback()
			return nil, grpcErr(err)
		}
	}

	notifications, err := tx.Commit()
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "commit transaction"))
	}
	s.dispatch(notifications)
	s.audit.PortRangeChanged(id.ASN, id.Client, vlan.Name, req.InterfaceIp, req.FirstPort, req.LastPort, recreate)
	return &pb.Empty{}, nil
}

// --- ListPolicies ------------------------------------------------------------

// ListPolicies streams the caller's own policies matching the request
// filter. request.Asn, when set, must name the caller's own AS: this RPC
// never discloses another AS's policy set.
func (s *PeeringServer) ListPolicies(req *pb.ListPolicyRequest, stream pb.PeeringListPoliciesServer) error {
	ctx := stream.Context()
	id, err := identityOf(ctx)
	if err != nil {
		return grpcErr(err)
	}
	if req.Asn != "" {
		asn, err := model.ParseASN(req.Asn)
		if err != nil {
			return grpcErr(cerrors.Wrap(err, cerrors.KindValidation, "malformed asn"))
		}
		if asn != id.ASN {
			return grpcErr(cerrors.New(cerrors.KindPermission, "may only list the authenticated AS's own policies"))
		}
	}

	f := store.PolicyFilter{ASID: id.ASID}
	if req.Vlan != "" {
		vlan, err := s.store.GetVLANByName(ctx, req.Vlan)
		if err != nil {
			return grpcErr(err)
		}
		f.VLANID = &vlan.ID
	}
	if req.HasAccept {
		accept := req.Accept
		f.Accept = &accept
	}

	peer := model.PeerKind(req.Peer)
	f.Peer = &peer
	switch req.Peer {
	case pb.PeerKind_PEER_ASN:
		if req.PeerAsn != "" {
			asn, err := model.ParseASN(req.PeerAsn)
			if err != nil {
				return grpcErr(cerrors.Wrap(err, cerrors.KindValidation, "malformed peer asn"))
			}
			f.PeerASN = asn
		}
	case pb.PeerKind_PEER_OWNER:
		f.PeerOwner = req.PeerOwner
	case pb.PeerKind_PEER_ISD:
		if req.PeerIsd != "" {
			v, err := strconv.ParseInt(req.PeerIsd, 10, 32)
			if err != nil {
				return grpcErr(cerrors.Wrap(err, cerrors.KindValidation, "malformed peer isd"))
			}
			f.PeerISD = int32(v)
		}
	}

	policies, err := s.store.ListPolicies(ctx, f)
	if err != nil {
		return grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "list policies"))
	}
	for _, p := range policies {
		out, err := s.modelPolicyToPB(ctx, p)
		if err != nil {
			return grpcErr(err)
		}
		if err := stream.Send(out); err != nil {
			return err
		}
	}
	return nil
}

// --- CreatePolicy / DestroyPolicy --------------------------------------------

// CreatePolicy inserts one policy for the caller's AS and reconciles
// accepted peers and links for the affected VLAN in the same transaction.
func (s *PeeringServer) CreatePolicy(ctx context.Context, req *pb.Policy) (*pb.Empty, error) {
	id, err := identityOf(ctx)
	if err != nil {
		return nil, grpcErr(err)
	}
	asn, err := model.ParseASN(req.Asn)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindValidation, "malformed asn"))
	}
	if asn != id.ASN {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "policy asn must match the authenticated AS"))
	}

	vlan, err := s.store.GetVLANByName(ctx, req.Vlan)
	if err != nil {
		return nil, grpcErr(err)
	}
	if !s.registry.HasPolicyWritePermission(id.ASN, id.Client, vlan.Name) {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "not the primary client for this vlan"))
	}

	p, err := s.pbPolicyToModel(ctx, req, id.ASID, vlan.ID)
	if err != nil {
		return nil, grpcErr(err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "begin transaction"))
	}
	if _, err := tx.InsertPolicy(ctx, p); err != nil {
		tx.Rollback()
		if store.IsUniqueViolation(err) {
			return nil, grpcErr(cerrors.New(cerrors.KindConflict, "an equivalent policy already exists"))
		}
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "insert policy"))
	}
	if err := s.resolver.UpdateAcceptedPeers(ctx, tx, vlan.ID, id.ASID); err != nil {
		tx.Rollback()
		return nil, grpcErr(err)
	}
	if err := s.resolver.UpdateLinks(ctx, tx, vlan.ID, id.ASID); err != nil {
		tx.Rollback()
		return nil, grpcErr(err)
	}
	notifications, err := tx.Commit()
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "commit transaction"))
	}
	s.dispatch(notifications)
	s.audit.PolicyCreated(id.ASN, id.Client, vlan.Name, policyPeerDesc(req), req.Accept)
	return &pb.Empty{}, nil
}

// DestroyPolicy removes one policy identified by its natural key and
// reconciles the affected VLAN the same way CreatePolicy does.
func (s *PeeringServer) DestroyPolicy(ctx context.Context, req *pb.Policy) (*pb.Empty, error) {
	id, err := identityOf(ctx)
	if err != nil {
		return nil, grpcErr(err)
	}
	asn, err := model.ParseASN(req.Asn)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindValidation, "malformed asn"))
	}
	if asn != id.ASN {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "policy asn must match the authenticated AS"))
	}

	vlan, err := s.store.GetVLANByName(ctx, req.Vlan)
	if err != nil {
		return nil, grpcErr(err)
	}
	if !s.registry.HasPolicyWritePermission(id.ASN, id.Client, vlan.Name) {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "not the primary client for this vlan"))
	}

	key, err := s.pbPolicyToModel(ctx, req, id.ASID, vlan.ID)
	if err != nil {
		return nil, grpcErr(err)
	}
	existing, err := s.store.FindPolicy(ctx, key)
	if err != nil {
		return nil, grpcErr(err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "begin transaction"))
	}
	if err := tx.DeletePolicy(ctx, existing.Peer, existing.ID); err != nil {
		tx.Rollback()
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "delete policy"))
	}
	if err := s.resolver.UpdateAcceptedPeers(ctx, tx, vlan.ID, id.ASID); err != nil {
		tx.Rollback()
		return nil, grpcErr(err)
	}
	if err := s.resolver.UpdateLinks(ctx, tx, vlan.ID, id.ASID); err != nil {
		tx.Rollback()
		return nil, grpcErr(err)
	}
	notifications, err := tx.Commit()
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "commit transaction"))
	}
	s.dispatch(notifications)
	s.audit.PolicyDestroyed(id.ASN, id.Client, vlan.Name, policyPeerDesc(req))
	return &pb.Empty{}, nil
}

// --- SetPolicies -------------------------------------------------------------

// SetPolicies atomically replaces the caller's policies (optionally scoped
// to one VLAN) with the given set. Policies that fail validation are
// collected as rejections rather than aborting the call; if any were
// rejected and request.ContinueOnError is false, the whole write is rolled
// back but the rejection list is still returned with an OK status (§4.4).
func (s *PeeringServer) SetPolicies(ctx context.Context, req *pb.SetPoliciesRequest) (*pb.SetPoliciesResponse, error) {
	id, err := identityOf(ctx)
	if err != nil {
		return nil, grpcErr(err)
	}

	var vlanID *int64
	if req.Vlan != "" {
		vlan, err := s.store.GetVLANByName(ctx, req.Vlan)
		if err != nil {
			return nil, grpcErr(err)
		}
		if !s.registry.HasPolicyWritePermission(id.ASN, id.Client, vlan.Name) {
			return nil, grpcErr(cerrors.New(cerrors.KindPermission, "not the primary client for this vlan"))
		}
		vlanID = &vlan.ID
	} else if !s.registry.HasPolicyWritePermission(id.ASN, id.Client, "") {
		return nil, grpcErr(cerrors.New(cerrors.KindPermission, "not the primary client on every vlan with an election"))
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "begin transaction"))
	}
	if err := tx.DeletePoliciesForAS(ctx, id.ASID, vlanID); err != nil {
		tx.Rollback()
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "delete existing policies"))
	}

	resp := &pb.SetPoliciesResponse{}
	for _, wire := range req.Policies {
		asn, err := model.ParseASN(wire.Asn)
		if err != nil || asn != id.ASN {
			resp.RejectedPolicies = append(resp.RejectedPolicies, wire)
			resp.Errors = append(resp.Errors, "policy asn must match the authenticated AS")
			continue
		}
		vlan, err := s.store.GetVLANByName(ctx, wire.Vlan)
		if err != nil {
			resp.RejectedPolicies = append(resp.RejectedPolicies, wire)
			resp.Errors = append(resp.Errors, fmt.Sprintf("unknown vlan %q", wire.Vlan))
			continue
		}
		if vlanID != nil && vlan.ID != *vlanID {
			resp.RejectedPolicies = append(resp.RejectedPolicies, wire)
			resp.Errors = append(resp.Errors, fmt.Sprintf("policy vlan %q outside request scope", wire.Vlan))
			continue
		}
		p, err := s.pbPolicyToModel(ctx, wire, id.ASID, vlan.ID)
		if err != nil {
			resp.RejectedPolicies = append(resp.RejectedPolicies, wire)
			resp.Errors = append(resp.Errors, err.Error())
			continue
		}
		if _, err := tx.InsertPolicy(ctx, p); err != nil {
			resp.RejectedPolicies = append(resp.RejectedPolicies, wire)
			if store.IsUniqueViolation(err) {
				resp.Errors = append(resp.Errors, "duplicate policy")
			} else {
				resp.Errors = append(resp.Errors, err.Error())
			}
			continue
		}
	}

	if len(resp.Errors) > 0 && !req.ContinueOnError {
		tx.Rollback()
		s.audit.PoliciesReplaced(id.ASN, id.Client, req.Vlan, len(req.Policies)-len(resp.Errors), len(resp.Errors), false)
		return resp, nil
	}

	vlanNames, err := s.store.ConnectedVLANs(ctx, id.ASID)
	if err != nil {
		tx.Rollback()
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "list connected vlans"))
	}
	for _, name := range vlanNames {
		vlan, err := s.store.GetVLANByName(ctx, name)
		if err != nil {
			tx.Rollback()
			return nil, grpcErr(err)
		}
		if err := s.resolver.UpdateAcceptedPeers(ctx, tx, vlan.ID, id.ASID); err != nil {
			tx.Rollback()
			return nil, grpcErr(err)
		}
		if err := s.resolver.UpdateLinks(ctx, tx, vlan.ID, id.ASID); err != nil {
			tx.Rollback()
			return nil, grpcErr(err)
		}
	}

	notifications, err := tx.Commit()
	if err != nil {
		return nil, grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "commit transaction"))
	}
	s.dispatch(notifications)
	s.audit.PoliciesReplaced(id.ASN, id.Client, req.Vlan, len(req.Policies)-len(resp.Errors), len(resp.Errors), true)
	return resp, nil
}
