// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package resolver

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/store"
)

type rfixture struct {
	st   *store.Store
	res  *Resolver
	vlan model.VLAN
}

func newRFixture(t *testing.T) *rfixture {
	t.Helper()
	s, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err = s.CreateISD(ctx, model.ISD{ID: 1, Name: "isd1"})
	require.NoError(t, err)
	_, err = s.CreateISD(ctx, model.ISD{ID: 2, Name: "isd2"})
	require.NoError(t, err)

	vlanID, err := s.CreateVLAN(ctx, model.VLAN{
		Name: "ixp1", LongName: "Example IXP", IPNetwork: netip.MustParsePrefix("10.0.0.0/24"),
	})
	require.NoError(t, err)
	vlan, err := s.GetVLANByID(ctx, vlanID)
	require.NoError(t, err)

	return &rfixture{st: s, res: New(s, nil), vlan: *vlan}
}

// newAS creates an AS, its default owner (named after itself), a single
// client and one interface on the fixture's VLAN, returning the AS row.
func (f *rfixture) newAS(t *testing.T, name string, asn uint64, isd int32, isCore bool, ip string) *model.AS {
	t.Helper()
	ctx := context.Background()

	ownerID, err := f.st.CreateOwner(ctx, model.Owner{Name: name})
	require.NoError(t, err)
	asID, err := f.st.CreateAS(ctx, model.AS{ASN: asn, ISDID: isd, Owner: ownerID, IsCore: isCore, Name: name})
	require.NoError(t, err)
	asys, err := f.st.GetASByID(ctx, asID)
	require.NoError(t, err)

	clientID, err := f.st.CreateClient(ctx, model.PeeringClient{ASID: asID, Name: "router1", SecretToken: "tok"})
	require.NoError(t, err)
	_, err = f.st.CreateInterface(ctx, model.Interface{
		PeeringClientID: clientID, VLANID: f.vlan.ID,
		PublicIP: netip.MustParseAddr(ip), FirstPort: 50000, LastPort: 50010,
	})
	require.NoError(t, err)
	return asys
}

func (f *rfixture) insertPolicy(t *testing.T, p model.Policy) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.st.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertPolicy(ctx, p)
	require.NoError(t, err)
	_, err = tx.Commit()
	require.NoError(t, err)
}

func (f *rfixture) updateAcceptedPeers(t *testing.T, asID int64) []model.Notification {
	t.Helper()
	ctx := context.Background()
	tx, err := f.st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.res.UpdateAcceptedPeers(ctx, tx, f.vlan.ID, asID))
	notifications, err := tx.Commit()
	require.NoError(t, err)
	return notifications
}

func (f *rfixture) updateLinks(t *testing.T, asID int64) []model.Notification {
	t.Helper()
	ctx := context.Background()
	tx, err := f.st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.res.UpdateLinks(ctx, tx, f.vlan.ID, asID))
	notifications, err := tx.Commit()
	require.NoError(t, err)
	return notifications
}

func TestUpdateAcceptedPeersDefaultAcceptIncludesAllOtherMembers(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")
	c := f.newAS(t, "c", 3, 1, true, "10.0.0.3")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerEveryone, Accept: true})
	f.updateAcceptedPeers(t, a.ID)

	peers, err := f.st.AcceptedPeersOf(context.Background(), a.ID, f.vlan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{b.ID, c.ID}, peers)
}

func TestUpdateAcceptedPeersASPeerRejectOverridesDefaultAccept(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")
	f.newAS(t, "c", 3, 1, true, "10.0.0.3")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerEveryone, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: false})
	f.updateAcceptedPeers(t, a.ID)

	accepted, err := f.st.Accepts(context.Background(), a.ID, b.ID, f.vlan.ID)
	require.NoError(t, err)
	assert.False(t, accepted, "an explicit AS-peer reject must win over the default-accept tier")
}

func TestUpdateAcceptedPeersOwnerAcceptOverridesISDReject(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")

	bOwner, err := f.st.GetOwnerByASN(context.Background(), b.ASN)
	require.NoError(t, err)

	// ISD-reject for isd1 would exclude b, but an owner-accept for b's owner
	// ranks above the ISD tier.
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerISD, PeerISDID: 1, Accept: false})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerOwner, PeerOwnerID: bOwner.ID, Accept: true})
	f.updateAcceptedPeers(t, a.ID)

	accepted, err := f.st.Accepts(context.Background(), a.ID, b.ID, f.vlan.ID)
	require.NoError(t, err)
	assert.True(t, accepted, "owner-accept must override an ISD-reject")
}

func TestUpdateLinksMutualAcceptBetweenCoreASesCreatesCoreLink(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: b.ID, Peer: model.PeerAS, PeerASID: a.ID, Accept: true})
	f.updateAcceptedPeers(t, a.ID)
	f.updateAcceptedPeers(t, b.ID)

	notifications := f.updateLinks(t, a.ID)

	var created []model.Notification
	for _, n := range notifications {
		if n.Link != nil && n.Link.Create {
			created = append(created, n)
		}
	}
	require.Len(t, created, 2, "one notification per side of the new link")
	assert.Equal(t, model.LinkCore, created[0].Link.Type)
}

func TestUpdateLinksCoreAndNonCoreSameISDCreatesProviderLink(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, false, "10.0.0.2")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: b.ID, Peer: model.PeerAS, PeerASID: a.ID, Accept: true})
	f.updateAcceptedPeers(t, a.ID)
	f.updateAcceptedPeers(t, b.ID)

	notifications := f.updateLinks(t, a.ID)
	links, err := f.st.LinksOnInterface(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.LinkProvider, links[0].Type)
	assert.NotEmpty(t, notifications)
}

func TestUpdateLinksCoreAndNonCoreDifferentISDsRejectedWithAsyncError(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 2, false, "10.0.0.2")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: b.ID, Peer: model.PeerAS, PeerASID: a.ID, Accept: true})
	f.updateAcceptedPeers(t, a.ID)
	f.updateAcceptedPeers(t, b.ID)

	notifications := f.updateLinks(t, a.ID)

	links, err := f.st.LinksOnInterface(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, links, "a core and a non-core AS in different ISDs cannot be linked")

	var errCount int
	for _, n := range notifications {
		if n.Error != nil {
			errCount++
		}
	}
	assert.Equal(t, 2, errCount, "both sides get an async error report")
}

func TestUpdateLinksWithdrawnAcceptanceDestroysExistingLink(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: b.ID, Peer: model.PeerAS, PeerASID: a.ID, Accept: true})
	f.updateAcceptedPeers(t, a.ID)
	f.updateAcceptedPeers(t, b.ID)
	f.updateLinks(t, a.ID)

	links, err := f.st.LinksOnInterface(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, links, 1)

	// b withdraws its accept policy entirely.
	ctx := context.Background()
	tx, err := f.st.Begin(ctx)
	require.NoError(t, err)
	existing, err := f.st.FindPolicy(ctx, model.Policy{VLANID: f.vlan.ID, ASID: b.ID, Peer: model.PeerAS, PeerASID: a.ID})
	require.NoError(t, err)
	require.NoError(t, tx.DeletePolicy(ctx, model.PeerAS, existing.ID))
	_, err = tx.Commit()
	require.NoError(t, err)

	f.updateAcceptedPeers(t, b.ID)
	notifications := f.updateLinks(t, a.ID)

	links, err = f.st.LinksOnInterface(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, links, "link must be torn down once mutual acceptance no longer holds")

	var destroyed int
	for _, n := range notifications {
		if n.Link != nil && !n.Link.Create {
			destroyed++
		}
	}
	assert.Equal(t, 2, destroyed)
}

// TestUpdateAcceptedPeersIsIdempotent covers spec.md §8's testable property
// 5: re-running UpdateAcceptedPeers against unchanged policy state must not
// change the accepted-peers set.
func TestUpdateAcceptedPeersIsIdempotent(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")
	c := f.newAS(t, "c", 3, 1, true, "10.0.0.3")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerEveryone, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: false})
	f.updateAcceptedPeers(t, a.ID)

	before, err := f.st.AcceptedPeersOf(context.Background(), a.ID, f.vlan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{c.ID}, before)

	f.updateAcceptedPeers(t, a.ID)
	f.updateAcceptedPeers(t, a.ID)

	after, err := f.st.AcceptedPeersOf(context.Background(), a.ID, f.vlan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, before, after, "re-running against unchanged policy state must not change the accepted-peers set")
}

// TestUpdateLinksIsIdempotent covers the same idempotence property for
// UpdateLinks: re-running it against an already-materialised link must
// leave exactly one link in place and report no further notifications.
func TestUpdateLinksIsIdempotent(t *testing.T) {
	f := newRFixture(t)
	a := f.newAS(t, "a", 1, 1, true, "10.0.0.1")
	b := f.newAS(t, "b", 2, 1, true, "10.0.0.2")

	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: a.ID, Peer: model.PeerAS, PeerASID: b.ID, Accept: true})
	f.insertPolicy(t, model.Policy{VLANID: f.vlan.ID, ASID: b.ID, Peer: model.PeerAS, PeerASID: a.ID, Accept: true})
	f.updateAcceptedPeers(t, a.ID)
	f.updateAcceptedPeers(t, b.ID)
	f.updateLinks(t, a.ID)

	links, err := f.st.LinksOnInterface(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, links, 1)

	notifications := f.updateLinks(t, a.ID)

	links, err = f.st.LinksOnInterface(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, links, 1, "re-running UpdateLinks against unchanged state must not duplicate the link")
	assert.Empty(t, notifications, "re-running UpdateLinks against unchanged state must report nothing new")
}
