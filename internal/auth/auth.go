// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package auth implements the gRPC metadata-based authentication boundary:
// every RPC must carry "asn", "client" and "token" headers identifying a
// registered PeeringClient and its secret token (§6). The HTML admin UI's
// own authentication is out of scope; this package only validates the
// peering-client credential shape.
package auth

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	cerrors "netsys.dev/peeringcoord/internal/errors"
	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/store"
)

const (
	asnHeaderKey    = "asn"
	clientHeaderKey = "client"
	tokenHeaderKey  = "token"
)

// Identity is the authenticated caller of an RPC.
type Identity struct {
	ASN      uint64
	ASID     int64
	Client   string
	ClientID int64
}

type identityKey struct{}

// FromContext returns the Identity attached by the interceptors below, or
// false if the context carries none (should never happen for a
// successfully authenticated call).
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// NewContext returns a copy of ctx carrying id. The interceptors below are
// the only callers on the request path; tests exercising an RPC handler
// directly use this to stand in for them.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Authenticator validates the (asn, client, token) triple against the
// store and produces the interceptors registered on the gRPC server.
type Authenticator struct {
	store *store.Store
}

func New(s *store.Store) *Authenticator {
	return &Authenticator{store: s}
}

func (a *Authenticator) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, cerrors.New(cerrors.KindUnauthenticated, "missing request metadata")
	}

	asnStr := firstValue(md, asnHeaderKey)
	client := firstValue(md, clientHeaderKey)
	token := firstValue(md, tokenHeaderKey)
	if asnStr == "" || client == "" || token == "" {
		return ctx, cerrors.New(cerrors.KindUnauthenticated, "missing asn, client or token header")
	}

	asn, err := model.ParseASN(asnStr)
	if err != nil {
		return ctx, cerrors.Wrap(err, cerrors.KindUnauthenticated, "malformed asn header")
	}

	asys, err := a.store.GetASByASN(ctx, asn)
	if err != nil {
		return ctx, cerrors.New(cerrors.KindUnauthenticated, "authentication failed")
	}
	cl, err := a.store.GetClient(ctx, asys.ID, client)
	if err != nil {
		return ctx, cerrors.New(cerrors.KindUnauthenticated, "authentication failed")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(cl.SecretToken)) != 1 {
		return ctx, cerrors.New(cerrors.KindUnauthenticated, "authentication failed")
	}

	id := Identity{ASN: asn, ASID: asys.ID, Client: client, ClientID: cl.ID}
	return context.WithValue(ctx, identityKey{}, id), nil
}

func firstValue(md metadata.MD, key string) string {
	vs := md.Get(key)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// UnaryInterceptor authenticates every unary RPC before invoking its handler.
func (a *Authenticator) UnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	ctx, err := a.authenticate(ctx)
	if err != nil {
		return nil, cerrors.GRPCStatus(err).Err()
	}
	return handler(ctx, req)
}

// authenticatedStream wraps a grpc.ServerStream to override its Context
// with the one carrying the validated Identity.
type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }

// StreamInterceptor authenticates every streaming RPC (including the
// long-lived StreamChannel) before invoking its handler.
func (a *Authenticator) StreamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := a.authenticate(ss.Context())
	if err != nil {
		return cerrors.GRPCStatus(err).Err()
	}
	return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
}
