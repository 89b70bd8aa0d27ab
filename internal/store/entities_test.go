// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsys.dev/peeringcoord/internal/allocator"
	"netsys.dev/peeringcoord/internal/model"
)

// TestUsedPortsOnInterfaceIsScopedPerInterfaceNotPerAS covers both cases of
// an AS with multiple interfaces (spec.md §9's open question on allocator
// scope): a port in use on one of an AS's interfaces must not be reported as
// used on the AS's other interface, since the allocator scope is
// per-interface, not per-AS.
func TestUsedPortsOnInterfaceIsScopedPerInterfaceNotPerAS(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	ownerID, err := s.CreateOwner(ctx, model.Owner{Name: "acme"})
	require.NoError(t, err)
	_, err = s.CreateISD(ctx, model.ISD{ID: 1, Name: "isd1"})
	require.NoError(t, err)

	aID, err := s.CreateAS(ctx, model.AS{ASN: 64512, ISDID: 1, Owner: ownerID, IsCore: true, Name: "a"})
	require.NoError(t, err)
	bID, err := s.CreateAS(ctx, model.AS{ASN: 64513, ISDID: 1, Owner: ownerID, IsCore: true, Name: "b"})
	require.NoError(t, err)

	prefix := netip.MustParsePrefix("10.0.0.0/24")
	vlanID, err := s.CreateVLAN(ctx, model.VLAN{Name: "ixp1", LongName: "Example IXP", IPNetwork: prefix})
	require.NoError(t, err)

	aClientID, err := s.CreateClient(ctx, model.PeeringClient{ASID: aID, Name: "router1", SecretToken: "ta"})
	require.NoError(t, err)
	bClientID, err := s.CreateClient(ctx, model.PeeringClient{ASID: bID, Name: "router1", SecretToken: "tb"})
	require.NoError(t, err)

	// a has two interfaces on the same VLAN, each with its own port range.
	aIface1ID, err := s.CreateInterface(ctx, model.Interface{
		PeeringClientID: aClientID, VLANID: vlanID,
		PublicIP: netip.MustParseAddr("10.0.0.1"), FirstPort: 50000, LastPort: 50010,
	})
	require.NoError(t, err)
	aIface2ID, err := s.CreateInterface(ctx, model.Interface{
		PeeringClientID: aClientID, VLANID: vlanID,
		PublicIP: netip.MustParseAddr("10.0.0.2"), FirstPort: 50000, LastPort: 50010,
	})
	require.NoError(t, err)
	bIfaceID, err := s.CreateInterface(ctx, model.Interface{
		PeeringClientID: bClientID, VLANID: vlanID,
		PublicIP: netip.MustParseAddr("10.0.0.3"), FirstPort: 50000, LastPort: 50010,
	})
	require.NoError(t, err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.CreateLink(ctx, aIface1ID, 50000, bIfaceID, 50000, model.LinkCore)
	require.NoError(t, err)
	_, err = tx.Commit()
	require.NoError(t, err)

	usedOnIface1, err := s.UsedPortsOnInterface(ctx, aIface1ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{50000}, usedOnIface1)

	usedOnIface2, err := s.UsedPortsOnInterface(ctx, aIface2ID)
	require.NoError(t, err)
	assert.Empty(t, usedOnIface2, "port 50000 in use on a's first interface must not shadow its second interface")

	// The allocator itself, fed each interface's own used-port set, must
	// therefore hand out port 50000 again on the second interface.
	p1, err := allocator.FreePort(50000, 50010, usedOnIface1, "if1")
	require.NoError(t, err)
	assert.EqualValues(t, 50001, p1, "first interface's port 50000 is taken")

	p2, err := allocator.FreePort(50000, 50010, usedOnIface2, "if2")
	require.NoError(t, err)
	assert.EqualValues(t, 50000, p2, "second interface's own range starts unused regardless of the first interface's allocation")
}

// TestIsConnectedToVLANReflectsPerClientInterfaces exercises the
// VLAN-membership check used by policy validation: an AS is
// connected to a VLAN exactly when one of its interfaces lives there.
func TestIsConnectedToVLANReflectsPerClientInterfaces(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	ownerID, err := s.CreateOwner(ctx, model.Owner{Name: "acme"})
	require.NoError(t, err)
	_, err = s.CreateISD(ctx, model.ISD{ID: 1, Name: "isd1"})
	require.NoError(t, err)
	asID, err := s.CreateAS(ctx, model.AS{ASN: 64512, ISDID: 1, Owner: ownerID, IsCore: true, Name: "a"})
	require.NoError(t, err)

	prefix := netip.MustParsePrefix("10.0.0.0/24")
	connectedVLANID, err := s.CreateVLAN(ctx, model.VLAN{Name: "ixp1", LongName: "Example IXP", IPNetwork: prefix})
	require.NoError(t, err)
	unconnectedVLANID, err := s.CreateVLAN(ctx, model.VLAN{Name: "ixp2", LongName: "Other IXP", IPNetwork: prefix})
	require.NoError(t, err)

	clientID, err := s.CreateClient(ctx, model.PeeringClient{ASID: asID, Name: "router1", SecretToken: "t1"})
	require.NoError(t, err)
	_, err = s.CreateInterface(ctx, model.Interface{
		PeeringClientID: clientID, VLANID: connectedVLANID,
		PublicIP: netip.MustParseAddr("10.0.0.1"), FirstPort: 50000, LastPort: 50010,
	})
	require.NoError(t, err)

	ok, err := s.IsConnectedToVLAN(ctx, asID, connectedVLANID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsConnectedToVLAN(ctx, asID, unconnectedVLANID)
	require.NoError(t, err)
	assert.False(t, ok, "the AS has no interface on this vlan")
}
