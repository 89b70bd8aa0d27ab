// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package audit provides a structured audit trail of the policy mutations
// the peering control plane performs (§4.4): every CreatePolicy,
// DestroyPolicy, SetPolicies and SetPortRange call that commits is logged
// with a unique event id, the authenticated caller, and enough detail to
// reconstruct what changed.
package audit

import (
	"github.com/google/uuid"

	"netsys.dev/peeringcoord/internal/logging"
)

// EventType classifies one audited action.
type EventType string

const (
	EventPolicyCreated    EventType = "policy_created"
	EventPolicyDestroyed  EventType = "policy_destroyed"
	EventPoliciesReplaced EventType = "policies_replaced"
	EventPortRangeChanged EventType = "port_range_changed"
)

// Logger records audit events to the structured logger at Info level, each
// tagged with a fresh event id so log aggregators can correlate a single
// mutation's before/after lines.
type Logger struct {
	logger *logging.Logger
}

func NewLogger(logger *logging.Logger) *Logger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Logger{logger: logger.WithComponent("audit")}
}

func (l *Logger) log(event EventType, asn uint64, client string, args ...any) {
	fields := append([]any{"event_id", uuid.NewString(), "event", string(event), "asn", asn, "client", client}, args...)
	l.logger.Info("audit", fields...)
}

// PolicyCreated records a successful CreatePolicy call.
func (l *Logger) PolicyCreated(asn uint64, client, vlan string, peerDesc string, accept bool) {
	l.log(EventPolicyCreated, asn, client, "vlan", vlan, "peer", peerDesc, "accept", accept)
}

// PolicyDestroyed records a successful DestroyPolicy call.
func (l *Logger) PolicyDestroyed(asn uint64, client, vlan string, peerDesc string) {
	l.log(EventPolicyDestroyed, asn, client, "vlan", vlan, "peer", peerDesc)
}

// PoliciesReplaced records a SetPolicies call, whether or not it committed;
// committed distinguishes a successful bulk replace from one rolled back
// because of rejections and !ContinueOnError.
func (l *Logger) PoliciesReplaced(asn uint64, client, vlan string, accepted, rejected int, committed bool) {
	l.log(EventPoliciesReplaced, asn, client,
		"vlan", vlan, "accepted", accepted, "rejected", rejected, "committed", committed)
}

// PortRangeChanged records a successful SetPortRange call.
func (l *Logger) PortRangeChanged(asn uint64, client, vlan, ip string, first, last uint32, recreatedLinks bool) {
	l.log(EventPortRangeChanged, asn, client,
		"vlan", vlan, "ip", ip, "first_port", first, "last_port", last, "recreated_links", recreatedLinks)
}
