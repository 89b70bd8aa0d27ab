// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsys.dev/peeringcoord/internal/pb"
)

func TestConnectDuplicateRejected(t *testing.T) {
	r := New(nil)
	_, err := r.Connect(1, "primary")
	require.NoError(t, err)

	_, err = r.Connect(1, "primary")
	require.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestArbitrationHighestElectionIdWins(t *testing.T) {
	r := New(nil)
	connA, err := r.Connect(1, "a")
	require.NoError(t, err)
	connB, err := r.Connect(1, "b")
	require.NoError(t, err)

	connA.Deliver(&pb.StreamMessageRequest{Arbitration: &pb.ArbitrationUpdate{HasVlan: true, Vlan: "prod", ElectionId: 5}})
	connB.Deliver(&pb.StreamMessageRequest{Arbitration: &pb.ArbitrationUpdate{HasVlan: true, Vlan: "prod", ElectionId: 9}})

	assert.True(t, r.HasPolicyWritePermission(1, "b", "prod"))
	assert.False(t, r.HasPolicyWritePermission(1, "a", "prod"))
}

func TestArbitrationTieBreaksLexicographically(t *testing.T) {
	r := New(nil)
	connA, _ := r.Connect(1, "alice")
	connB, _ := r.Connect(1, "bob")

	connB.Deliver(&pb.StreamMessageRequest{Arbitration: &pb.ArbitrationUpdate{HasVlan: true, Vlan: "prod", ElectionId: 3}})
	connA.Deliver(&pb.StreamMessageRequest{Arbitration: &pb.ArbitrationUpdate{HasVlan: true, Vlan: "prod", ElectionId: 3}})

	assert.True(t, r.HasPolicyWritePermission(1, "alice", "prod"))
}

func TestDisconnectReelectsPrimary(t *testing.T) {
	r := New(nil)
	connA, _ := r.Connect(1, "a")
	connB, _ := r.Connect(1, "b")

	connA.Deliver(&pb.StreamMessageRequest{Arbitration: &pb.ArbitrationUpdate{HasVlan: true, Vlan: "prod", ElectionId: 10}})
	connB.Deliver(&pb.StreamMessageRequest{Arbitration: &pb.ArbitrationUpdate{HasVlan: true, Vlan: "prod", ElectionId: 1}})
	require.True(t, r.HasPolicyWritePermission(1, "a", "prod"))

	r.Disconnect(1, connA)
	assert.True(t, r.HasPolicyWritePermission(1, "b", "prod"))
}

func TestRegistryReapsEmptyAS(t *testing.T) {
	r := New(nil)
	conn, err := r.Connect(7, "only")
	require.NoError(t, err)
	require.NotNil(t, r.Get(7))

	r.Disconnect(7, conn)
	assert.Nil(t, r.Get(7))
}

func TestSendLinkUpdateFanOut(t *testing.T) {
	r := New(nil)
	connA, _ := r.Connect(2, "a")
	connB, _ := r.Connect(2, "b")

	r.SendLinkUpdate(2, &pb.LinkUpdate{PeerAsn: "64512"})

	select {
	case msg := <-connA.Outbound():
		assert.Equal(t, "64512", msg.LinkUpdate.PeerAsn)
	default:
		t.Fatal("expected message queued for connA")
	}
	select {
	case msg := <-connB.Outbound():
		assert.Equal(t, "64512", msg.LinkUpdate.PeerAsn)
	default:
		t.Fatal("expected message queued for connB")
	}
}
