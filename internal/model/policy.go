// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

// PeerKind discriminates which of the four policy tables a Policy belongs
// to. This is the tagged-sum-type rendition of the original PeeringPolicy
// class hierarchy (DefaultPolicy/AsPeerPolicy/IsdPeerPolicy/OwnerPeerPolicy);
// the wire protocol's `peer` oneof encodes the same tag.
type PeerKind int

const (
	PeerEveryone PeerKind = iota
	PeerAS
	PeerOwner
	PeerISD
)

// Policy is a single accept/reject rule an AS declares for a VLAN. Exactly
// one of PeerASID/PeerOwnerID/PeerISDID is meaningful, selected by Peer.
type Policy struct {
	ID     int64
	VLANID int64
	ASID   int64
	Accept bool
	Peer   PeerKind

	PeerASID    int64 // valid iff Peer == PeerAS
	PeerOwnerID int64 // valid iff Peer == PeerOwner
	PeerISDID   int32 // valid iff Peer == PeerISD
}
