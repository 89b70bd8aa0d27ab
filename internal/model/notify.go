// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

import "net/netip"

// LinkNotification is a domain-level event describing one side of a link
// creation or destruction, keyed by the recipient AS's ASN so the registry
// never needs to resolve store row IDs.
type LinkNotification struct {
	ASN        uint64 // AS to deliver to
	Create     bool   // true: CREATE, false: DESTROY
	Type       LinkType
	PeerASN    uint64
	LocalIP    netip.Addr
	LocalPort  uint32
	RemoteIP   netip.Addr
	RemotePort uint32
}

// ErrorNotification is an asynchronous error report delivered to every
// client of an AS, independent of any particular RPC's response.
type ErrorNotification struct {
	ASN     uint64
	Code    string
	Message string
}

// Notification is exactly one of Link or Error, collected during a
// transaction and drained to the registry only once the transaction commits.
type Notification struct {
	Link  *LinkNotification
	Error *ErrorNotification
}
