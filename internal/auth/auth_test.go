// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/store"
)

func newTestFixture(t *testing.T) (*store.Store, int64) {
	t.Helper()
	s, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	ownerID, err := s.CreateOwner(ctx, model.Owner{Name: "acme"})
	require.NoError(t, err)
	_, err = s.CreateISD(ctx, model.ISD{ID: 1, Name: "isd1"})
	require.NoError(t, err)
	asID, err := s.CreateAS(ctx, model.AS{ASN: 64512, ISDID: 1, Owner: ownerID, Name: "as1"})
	require.NoError(t, err)
	clientID, err := s.CreateClient(ctx, model.PeeringClient{ASID: asID, Name: "router1", SecretToken: "s3cr3t"})
	require.NoError(t, err)
	_ = clientID
	return s, asID
}

func ctxWithMD(asn, client, token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"asn", asn, "client", client, "token", token))
}

func TestAuthenticateSuccess(t *testing.T) {
	s, _ := newTestFixture(t)
	a := New(s)

	ctx, err := a.authenticate(ctxWithMD("64512", "router1", "s3cr3t"))
	require.NoError(t, err)

	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.EqualValues(t, 64512, id.ASN)
	assert.Equal(t, "router1", id.Client)
}

func TestAuthenticateWrongToken(t *testing.T) {
	s, _ := newTestFixture(t)
	a := New(s)

	_, err := a.authenticate(ctxWithMD("64512", "router1", "wrong"))
	require.Error(t, err)
}

func TestAuthenticateMissingHeaders(t *testing.T) {
	s, _ := newTestFixture(t)
	a := New(s)

	_, err := a.authenticate(context.Background())
	require.Error(t, err)
}

func TestUnaryInterceptorRejectsBadToken(t *testing.T) {
	s, _ := newTestFixture(t)
	a := New(s)

	handlerCalled := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return nil, nil
	}

	_, err := a.UnaryInterceptor(ctxWithMD("64512", "router1", "wrong"), nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
	assert.False(t, handlerCalled)
}
