// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package infosvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/pb"
	"netsys.dev/peeringcoord/internal/store"
)

// fakeSearchOwnerStream is a minimal grpc.ServerStream double that collects
// every Owner sent to it, standing in for the real stream transport.
type fakeSearchOwnerStream struct {
	owners []*pb.Owner
}

func (f *fakeSearchOwnerStream) Send(o *pb.Owner) error {
	f.owners = append(f.owners, o)
	return nil
}
func (f *fakeSearchOwnerStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeSearchOwnerStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeSearchOwnerStream) SetTrailer(metadata.MD)       {}
func (f *fakeSearchOwnerStream) Context() context.Context     { return context.Background() }
func (f *fakeSearchOwnerStream) SendMsg(m any) error          { return nil }
func (f *fakeSearchOwnerStream) RecvMsg(m any) error          { return nil }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestGetOwnerByName(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	ownerID, err := s.CreateOwner(ctx, model.Owner{Name: "acme", LongName: "Acme Corp", Contact: "noc@acme.example"})
	require.NoError(t, err)
	_, err = s.CreateISD(ctx, model.ISD{ID: 1, Name: "isd1"})
	require.NoError(t, err)
	_, err = s.CreateAS(ctx, model.AS{ASN: 64512, ISDID: 1, Owner: ownerID, Name: "as1"})
	require.NoError(t, err)
	_, err = s.CreateAS(ctx, model.AS{ASN: 64511, ISDID: 1, Owner: ownerID, Name: "as2"})
	require.NoError(t, err)

	owner, err := srv.GetOwner(ctx, &pb.GetOwnerRequest{Name: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", owner.LongName)
	assert.Equal(t, []string{"64511", "64512"}, owner.Asns, "asns must be sorted ascending")
}

func TestGetOwnerRequiresNameOrASN(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.GetOwner(context.Background(), &pb.GetOwnerRequest{})
	require.Error(t, err)
}

func TestGetOwnerNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.GetOwner(context.Background(), &pb.GetOwnerRequest{Name: "nobody"})
	require.Error(t, err)
}

func TestSearchOwnerMatchesLongNameSubstring(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	_, err := s.CreateOwner(ctx, model.Owner{Name: "acme", LongName: "Acme Networking Corp"})
	require.NoError(t, err)
	_, err = s.CreateOwner(ctx, model.Owner{Name: "other", LongName: "Other Holdings"})
	require.NoError(t, err)

	stream := &fakeSearchOwnerStream{}
	err = srv.SearchOwner(&pb.SearchOwnerRequest{LongName: "networking"}, stream)
	require.NoError(t, err)
	require.Len(t, stream.owners, 1)
	assert.Equal(t, "acme", stream.owners[0].Name)
}
