// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pb holds the wire messages and gRPC service definitions of the
// peering protocol. There is no .proto source in this tree: these types and
// the service plumbing below are hand-maintained in the shape
// protoc-gen-go/protoc-gen-go-grpc would produce, tracking the message
// schema of the peering wire protocol one-for-one. Accessor methods follow
// the generated-code convention (Get<Field>()); unlike generated code they
// do not check for a nil receiver.
package pb

// PeerKind discriminates the `peer` oneof carried by Policy and
// ListPolicyRequest.
type PeerKind int32

const (
	PeerKind_PEER_EVERYONE PeerKind = 0
	PeerKind_PEER_ASN      PeerKind = 1
	PeerKind_PEER_OWNER    PeerKind = 2
	PeerKind_PEER_ISD      PeerKind = 3
)

// Policy is a single peering policy rule.
type Policy struct {
	Vlan   string
	Asn    string
	Accept bool

	Peer      PeerKind
	PeerAsn   string
	PeerOwner string
	PeerIsd   string
}

func (m *Policy) GetVlan() string       { return m.Vlan }
func (m *Policy) GetAsn() string        { return m.Asn }
func (m *Policy) GetAccept() bool       { return m.Accept }
func (m *Policy) GetPeerAsn() string    { return m.PeerAsn }
func (m *Policy) GetPeerOwner() string  { return m.PeerOwner }
func (m *Policy) GetPeerIsd() string    { return m.PeerIsd }

// ListPolicyRequest is the request for the server-streaming ListPolicies RPC.
type ListPolicyRequest struct {
	Vlan string
	Asn  string

	HasAccept bool
	Accept    bool

	Peer      PeerKind
	PeerAsn   string
	PeerOwner string
	PeerIsd   string
}

func (m *ListPolicyRequest) GetVlan() string { return m.Vlan }
func (m *ListPolicyRequest) GetAsn() string  { return m.Asn }

// SetPoliciesRequest is the request for the bulk-replace RPC.
type SetPoliciesRequest struct {
	Policies        []*Policy
	Vlan            string
	ContinueOnError bool
}

// SetPoliciesResponse reports the policies SetPolicies rejected.
type SetPoliciesResponse struct {
	RejectedPolicies []*Policy
	Errors           []string
}

// PortRange is the request for SetPortRange.
type PortRange struct {
	InterfaceVlan string
	InterfaceIp   string
	FirstPort     uint32
	LastPort      uint32
}

// ArbitrationStatus is the outcome of one arbitration round for one client.
type ArbitrationStatus int32

const (
	ArbitrationStatus_PRIMARY     ArbitrationStatus = 0
	ArbitrationStatus_NOT_PRIMARY ArbitrationStatus = 1
	ArbitrationStatus_ERROR       ArbitrationStatus = 2
)

// ArbitrationUpdate is both the client's arbitration request and the
// coordinator's corresponding reply.
type ArbitrationUpdate struct {
	HasVlan    bool
	Vlan       string
	ElectionId int64
	Status     ArbitrationStatus
}

func (m *ArbitrationUpdate) GetVlan() string { return m.Vlan }

// Endpoint is one side of a Link.
type Endpoint struct {
	Ip   string
	Port uint32
}

// LinkUpdateType distinguishes link creation from destruction.
type LinkUpdateType int32

const (
	LinkUpdateType_CREATE  LinkUpdateType = 0
	LinkUpdateType_DESTROY LinkUpdateType = 1
)

// LinkUpdateLinkType mirrors model.LinkType on the wire.
type LinkUpdateLinkType int32

const (
	LinkUpdateLinkType_CORE     LinkUpdateLinkType = 0
	LinkUpdateLinkType_PEERING  LinkUpdateLinkType = 1
	LinkUpdateLinkType_PROVIDER LinkUpdateLinkType = 2
)

// LinkUpdate notifies a client a link was created or destroyed.
type LinkUpdate struct {
	Type     LinkUpdateType
	LinkType LinkUpdateLinkType
	PeerAsn  string
	Local    *Endpoint
	Remote   *Endpoint
}

// AsyncErrorCode enumerates asynchronous error conditions (§7).
type AsyncErrorCode int32

const (
	AsyncErrorCode_LINK_CREATION_FAILED AsyncErrorCode = 0
)

// AsyncError is an out-of-band error report delivered on the stream.
type AsyncError struct {
	Code    AsyncErrorCode
	Message string
}

// StreamMessageRequest is the client->coordinator half of StreamChannel.
type StreamMessageRequest struct {
	Arbitration *ArbitrationUpdate
}

// StreamMessageResponse is the coordinator->client half of StreamChannel.
type StreamMessageResponse struct {
	Arbitration *ArbitrationUpdate
	LinkUpdate  *LinkUpdate
	Error       *AsyncError
}

// Owner, GetOwnerRequest, SearchOwnerRequest serve the informational service.
type Owner struct {
	Name     string
	LongName string
	Contact  string
	Asns     []string
}

type GetOwnerRequest struct {
	Name string
	Asn  string
}

type SearchOwnerRequest struct {
	LongName string
}

// Empty mirrors google.protobuf.Empty for RPCs with no useful return value.
type Empty struct{}
