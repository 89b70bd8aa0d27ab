// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package model defines the entities of the peering coordinator's data
// model (owners, ISDs, ASes, peering fabrics, links, and policies) and the
// value-level helpers (ASN parsing/formatting, slug validation) shared by
// every layer above the store.
package model

import "net/netip"

// Owner is the organisational grouping of one or more ASes.
type Owner struct {
	ID       int64
	Name     string // slug, unique
	LongName string
	Contact  string
}

// ISD is a SCION isolation domain.
type ISD struct {
	ID   int32 // 1..65535, primary key
	Name string
}

// AS is an Autonomous System participating in peering.
type AS struct {
	ID     int64
	ASN    uint64 // 48-bit, unique
	ISDID  int32
	Owner  int64
	IsCore bool
	Name   string
}

// VLAN is a shared layer-2 peering fabric.
type VLAN struct {
	ID         int64
	Name       string // slug, unique
	LongName   string
	IPNetwork  netip.Prefix
}

// PeeringClient is an agent acting for an AS on one or more fabrics.
type PeeringClient struct {
	ID          int64
	ASID        int64
	Name        string
	SecretToken string // random 128-bit hex; never re-derivable, only ever returned at creation
}

// Interface is an (ip, port-range) attachment of a PeeringClient to a VLAN.
type Interface struct {
	ID              int64
	PeeringClientID int64
	VLANID          int64
	PublicIP        netip.Addr
	FirstPort       uint32
	LastPort        uint32
}

// LinkType classifies a Link by the core/non-core status of its endpoints.
type LinkType int

const (
	LinkCore LinkType = iota
	LinkPeering
	LinkProvider
)

func (t LinkType) String() string {
	switch t {
	case LinkCore:
		return "CORE"
	case LinkPeering:
		return "PEERING"
	case LinkProvider:
		return "PROVIDER"
	default:
		return "UNKNOWN"
	}
}

// Link is a peering-fabric UDP endpoint pair materialising one SCION link.
// InterfaceA is always the lower interface ID, enforcing unordered
// uniqueness of the (interface_a, interface_b) pair at the store layer.
type Link struct {
	ID          int64
	InterfaceA  int64
	PortA       uint32
	InterfaceB  int64
	PortB       uint32
	Type        LinkType
}

// AcceptedPeer is the derived, directional "asys would accept peer on vlan"
// relation maintained by the resolver.
type AcceptedPeer struct {
	ASID   int64
	PeerID int64
	VLANID int64
}
