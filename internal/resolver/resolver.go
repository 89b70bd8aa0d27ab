// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package resolver implements the policy-resolution engine (§4.2): the pure
// computation from an AS's policies to its AcceptedPeer set, and from
// mutual acceptance to the desired Link set, reconciled incrementally
// against the current state inside a single store transaction.
package resolver

import (
	"context"
	"fmt"
	"net/netip"

	"netsys.dev/peeringcoord/internal/allocator"
	"netsys.dev/peeringcoord/internal/logging"
	"netsys.dev/peeringcoord/internal/metrics"
	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/store"
)

// Resolver runs the resolution algorithm against a Store, reading committed
// state and writing inside a caller-supplied transaction.
type Resolver struct {
	store  *store.Store
	logger *logging.Logger
}

func New(s *store.Store, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default().WithComponent("resolver")
	}
	return &Resolver{store: s, logger: logger}
}

// UpdateAcceptedPeers recomputes the AcceptedPeer set of asID on vlanID from
// its current policies (§4.2.1) and writes the minimal diff.
func (r *Resolver) UpdateAcceptedPeers(ctx context.Context, tx *store.Tx, vlanID, asID int64) error {
	acceptAS, rejectAS, err := r.store.ASPeerPolicies(ctx, vlanID, asID)
	if err != nil {
		return err
	}
	acceptOwnerIDs, rejectOwnerIDs, err := r.store.OwnerPeerPolicies(ctx, vlanID, asID)
	if err != nil {
		return err
	}
	acceptISDs, rejectISDs, err := r.store.IsdPeerPolicies(ctx, vlanID, asID)
	if err != nil {
		return err
	}
	defaultAccept, hasDefault, err := r.store.DefaultPolicy(ctx, vlanID, asID)
	if err != nil {
		return err
	}

	acceptOwnerASes, err := r.store.ASesByOwners(ctx, acceptOwnerIDs)
	if err != nil {
		return err
	}
	rejectOwnerASes, err := r.store.ASesByOwners(ctx, rejectOwnerIDs)
	if err != nil {
		return err
	}
	acceptISDASes, err := r.store.ASesByISDs(ctx, acceptISDs)
	if err != nil {
		return err
	}
	rejectISDASes, err := r.store.ASesByISDs(ctx, rejectISDs)
	if err != nil {
		return err
	}

	rAS := toSet(rejectAS)
	rOwner := toSet(rejectOwnerASes)
	rISD := toSet(rejectISDASes)

	accepted := make(map[int64]bool)
	for _, id := range acceptAS {
		accepted[id] = true
	}
	for _, id := range acceptOwnerASes {
		if !rAS[id] {
			accepted[id] = true
		}
	}
	for _, id := range acceptISDASes {
		if !rOwner[id] && !rAS[id] {
			accepted[id] = true
		}
	}

	if hasDefault && defaultAccept {
		members, err := r.store.Members(ctx, vlanID)
		if err != nil {
			return err
		}
		for _, id := range members {
			if id == asID {
				continue
			}
			if rISD[id] || rOwner[id] || rAS[id] {
				continue
			}
			accepted[id] = true
		}
	}
	delete(accepted, asID)

	newPeers := make([]int64, 0, len(accepted))
	for id := range accepted {
		newPeers = append(newPeers, id)
	}

	current, err := r.store.AcceptedPeersOf(ctx, asID, vlanID)
	if err != nil {
		return err
	}
	return tx.ReplaceAcceptedPeers(ctx, asID, vlanID, current, newPeers)
}

func toSet(ids []int64) map[int64]bool {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// UpdateLinks reconciles the physical Link set between asID and every peer
// on vlanID against mutual acceptance (§4.2.2). Notifications describing
// every change are appended to tx and only become visible once it commits.
func (r *Resolver) UpdateLinks(ctx context.Context, tx *store.Tx, vlanID, asID int64) error {
	metrics.Get().ResolverRuns.Inc()

	vlan, err := r.vlanByID(ctx, vlanID)
	if err != nil {
		return err
	}
	asys, err := r.store.GetASByID(ctx, asID)
	if err != nil {
		return err
	}

	myIfaces, err := r.store.InterfacesOfASOnVLAN(ctx, asID, vlanID)
	if err != nil {
		return err
	}
	myIfaceIDs := interfaceIDs(myIfaces)

	oldLinks, err := r.linksOf(ctx, myIfaceIDs)
	if err != nil {
		return err
	}
	oldPeers := make(map[int64][]model.Link) // peer AS id -> its links with asID
	for _, l := range oldLinks {
		peerIfaceID := l.InterfaceA
		if containsID(myIfaceIDs, l.InterfaceA) {
			peerIfaceID = l.InterfaceB
		}
		peerAS, err := r.asOfInterface(ctx, peerIfaceID)
		if err != nil {
			return err
		}
		oldPeers[peerAS] = append(oldPeers[peerAS], l)
	}

	myAccepted, err := r.store.AcceptedPeersOf(ctx, asID, vlanID)
	if err != nil {
		return err
	}

	// P_new: mutual acceptance, computed directly from AcceptedPeer rather
	// than from the (possibly stale) existing Link set.
	mutualPeers := make(map[int64]bool)
	for _, peerID := range myAccepted {
		ok, err := r.store.Accepts(ctx, peerID, asID, vlanID)
		if err != nil {
			return err
		}
		if ok {
			mutualPeers[peerID] = true
		}
	}

	for peerID := range oldPeers {
		if !mutualPeers[peerID] {
			if err := r.destroyLinks(ctx, tx, vlan, asys, peerID, oldPeers[peerID]); err != nil {
				return err
			}
		}
	}
	for peerID := range mutualPeers {
		if _, had := oldPeers[peerID]; !had {
			if err := r.createLinks(ctx, tx, vlan, asys, peerID); err != nil {
				return err
			}
		}
	}
	return nil
}

func interfaceIDs(ifaces []model.Interface) []int64 {
	ids := make([]int64, len(ifaces))
	for i, f := range ifaces {
		ids[i] = f.ID
	}
	return ids
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (r *Resolver) linksOf(ctx context.Context, ifaceIDs []int64) ([]model.Link, error) {
	seen := make(map[int64]bool)
	var out []model.Link
	for _, id := range ifaceIDs {
		links, err := r.store.LinksOnInterface(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			if !seen[l.ID] {
				seen[l.ID] = true
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (r *Resolver) asOfInterface(ctx context.Context, ifaceID int64) (int64, error) {
	iface, err := r.interfaceByID(ctx, ifaceID)
	if err != nil {
		return 0, err
	}
	client, err := r.clientByID(ctx, iface.PeeringClientID)
	if err != nil {
		return 0, err
	}
	return client.ASID, nil
}

func (r *Resolver) destroyLinks(ctx context.Context, tx *store.Tx, vlan *model.VLAN, asys *model.AS, peerID int64, links []model.Link) error {
	peer, err := r.store.GetASByID(ctx, peerID)
	if err != nil {
		return err
	}
	for _, l := range links {
		localIP, localPort, remoteIP, remotePort, err := r.endpoints(ctx, l, asys.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteLink(ctx, l.ID); err != nil {
			return err
		}
		tx.Notify(model.Notification{Link: &model.LinkNotification{
			ASN: asys.ASN, Create: false, Type: l.Type, PeerASN: peer.ASN,
			LocalIP: localIP, LocalPort: localPort, RemoteIP: remoteIP, RemotePort: remotePort,
		}})
		tx.Notify(model.Notification{Link: &model.LinkNotification{
			ASN: peer.ASN, Create: false, Type: l.Type, PeerASN: asys.ASN,
			LocalIP: remoteIP, LocalPort: remotePort, RemoteIP: localIP, RemotePort: localPort,
		}})
	}
	return nil
}

// endpoints returns (localIP, localPort, remoteIP, remotePort) for link l as
// seen by the AS with id localASID.
func (r *Resolver) endpoints(ctx context.Context, l model.Link, localASID int64) (localIP netip.Addr, localPort uint32, remoteIP netip.Addr, remotePort uint32, err error) {
	ifaceA, err := r.interfaceByID(ctx, l.InterfaceA)
	if err != nil {
		return localIP, 0, remoteIP, 0, err
	}
	ifaceB, err := r.interfaceByID(ctx, l.InterfaceB)
	if err != nil {
		return localIP, 0, remoteIP, 0, err
	}
	clientA, err := r.clientByID(ctx, ifaceA.PeeringClientID)
	if err != nil {
		return localIP, 0, remoteIP, 0, err
	}
	if clientA.ASID == localASID {
		return ifaceA.PublicIP, l.PortA, ifaceB.PublicIP, l.PortB, nil
	}
	return ifaceB.PublicIP, l.PortB, ifaceA.PublicIP, l.PortA, nil
}

// createLinks implements create-links(vlan, asys=A, peer=B) (§4.2.2): picks
// a link type from the core/ISD table, then allocates one port per
// interface pair, persisting a Link for each and emitting notifications.
func (r *Resolver) createLinks(ctx context.Context, tx *store.Tx, vlan *model.VLAN, asys *model.AS, peerID int64) error {
	peer, err := r.store.GetASByID(ctx, peerID)
	if err != nil {
		return err
	}

	linkType, ok := pickLinkType(asys, peer)
	if !ok {
		tx.Notify(model.Notification{Error: &model.ErrorNotification{
			ASN: asys.ASN, Code: "LINK_CREATION_FAILED",
			Message: fmt.Sprintf("%s and %s are in different ISDs and only one of them is core", model.FormatASN(asys.ASN), model.FormatASN(peer.ASN)),
		}})
		tx.Notify(model.Notification{Error: &model.ErrorNotification{
			ASN: peer.ASN, Code: "LINK_CREATION_FAILED",
			Message: fmt.Sprintf("%s and %s are in different ISDs and only one of them is core", model.FormatASN(peer.ASN), model.FormatASN(asys.ASN)),
		}})
		return nil
	}

	asIfaces, err := r.store.InterfacesOfASOnVLAN(ctx, asys.ID, vlan.ID)
	if err != nil {
		return err
	}
	peerIfaces, err := r.store.InterfacesOfASOnVLAN(ctx, peer.ID, vlan.ID)
	if err != nil {
		return err
	}

	for _, ia := range asIfaces {
		for _, ib := range peerIfaces {
			if err := r.createOneLink(ctx, tx, asys, peer, ia, ib, linkType); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) createOneLink(ctx context.Context, tx *store.Tx, asys, peer *model.AS, ia, ib model.Interface, linkType model.LinkType) error {
	usedA, err := r.store.UsedPortsOnInterface(ctx, ia.ID)
	if err != nil {
		return err
	}
	portA, err := allocator.FreePort(ia.FirstPort, ia.LastPort, usedA, ia.PublicIP.String())
	if err != nil {
		tx.Notify(model.Notification{Error: &model.ErrorNotification{
			ASN: asys.ASN, Code: "LINK_CREATION_FAILED", Message: err.Error(),
		}})
		return nil
	}

	usedB, err := r.store.UsedPortsOnInterface(ctx, ib.ID)
	if err != nil {
		return err
	}
	portB, err := allocator.FreePort(ib.FirstPort, ib.LastPort, usedB, ib.PublicIP.String())
	if err != nil {
		tx.Notify(model.Notification{Error: &model.ErrorNotification{
			ASN: peer.ASN, Code: "LINK_CREATION_FAILED", Message: err.Error(),
		}})
		return nil
	}

	link, err := tx.CreateLink(ctx, ia.ID, int64(portA), ib.ID, int64(portB), linkType)
	if err != nil {
		return err
	}
	// CreateLink may have swapped sides to canonicalise interface_a/b; derive
	// each AS's local/remote view directly from ia/ib rather than link.
	_ = link

	tx.Notify(model.Notification{Link: &model.LinkNotification{
		ASN: asys.ASN, Create: true, Type: linkType, PeerASN: peer.ASN,
		LocalIP: ia.PublicIP, LocalPort: portA, RemoteIP: ib.PublicIP, RemotePort: portB,
	}})
	tx.Notify(model.Notification{Link: &model.LinkNotification{
		ASN: peer.ASN, Create: true, Type: linkType, PeerASN: asys.ASN,
		LocalIP: ib.PublicIP, LocalPort: portB, RemoteIP: ia.PublicIP, RemotePort: portA,
	}})
	return nil
}

// pickLinkType implements §4.2.2's table. It returns PROVIDER whichever of a
// and b is the core AS; the resulting Link does not record which side is
// core.
func pickLinkType(a, b *model.AS) (model.LinkType, bool) {
	switch {
	case a.IsCore && b.IsCore:
		return model.LinkCore, true
	case !a.IsCore && !b.IsCore:
		return model.LinkPeering, true
	case a.IsCore != b.IsCore:
		if a.ISDID == b.ISDID {
			return model.LinkProvider, true
		}
		return 0, false
	}
	return 0, false
}

func (r *Resolver) vlanByID(ctx context.Context, vlanID int64) (*model.VLAN, error) {
	return r.store.GetVLANByID(ctx, vlanID)
}

func (r *Resolver) interfaceByID(ctx context.Context, id int64) (*model.Interface, error) {
	return r.store.GetInterfaceByID(ctx, id)
}

func (r *Resolver) clientByID(ctx context.Context, id int64) (*model.PeeringClient, error) {
	return r.store.GetClientByID(ctx, id)
}
