// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pb

import (
	"context"

	"google.golang.org/grpc"
)

// PeeringServer is the peering control-plane service (§4.4).
type PeeringServer interface {
	StreamChannel(PeeringChannelServer) error
	SetPortRange(context.Context, *PortRange) (*Empty, error)
	ListPolicies(*ListPolicyRequest, PeeringListPoliciesServer) error
	CreatePolicy(context.Context, *Policy) (*Empty, error)
	DestroyPolicy(context.Context, *Policy) (*Empty, error)
	SetPolicies(context.Context, *SetPoliciesRequest) (*SetPoliciesResponse, error)
}

// UnimplementedPeeringServer embeds in a concrete server to get forward
// compatibility with new methods added to PeeringServer.
type UnimplementedPeeringServer struct{}

func (UnimplementedPeeringServer) StreamChannel(PeeringChannelServer) error {
	return grpcUnimplemented("StreamChannel")
}
func (UnimplementedPeeringServer) SetPortRange(context.Context, *PortRange) (*Empty, error) {
	return nil, grpcUnimplemented("SetPortRange")
}
func (UnimplementedPeeringServer) ListPolicies(*ListPolicyRequest, PeeringListPoliciesServer) error {
	return grpcUnimplemented("ListPolicies")
}
func (UnimplementedPeeringServer) CreatePolicy(context.Context, *Policy) (*Empty, error) {
	return nil, grpcUnimplemented("CreatePolicy")
}
func (UnimplementedPeeringServer) DestroyPolicy(context.Context, *Policy) (*Empty, error) {
	return nil, grpcUnimplemented("DestroyPolicy")
}
func (UnimplementedPeeringServer) SetPolicies(context.Context, *SetPoliciesRequest) (*SetPoliciesResponse, error) {
	return nil, grpcUnimplemented("SetPolicies")
}

// PeeringChannelServer is the server side of the bidirectional
// StreamChannel RPC.
type PeeringChannelServer interface {
	Send(*StreamMessageResponse) error
	Recv() (*StreamMessageRequest, error)
	grpc.ServerStream
}

// PeeringListPoliciesServer is the server side of the server-streaming
// ListPolicies RPC.
type PeeringListPoliciesServer interface {
	Send(*Policy) error
	grpc.ServerStream
}

type peeringChannelServer struct {
	grpc.ServerStream
}

func (s *peeringChannelServer) Send(m *StreamMessageResponse) error {
	return s.ServerStream.SendMsg(m)
}
func (s *peeringChannelServer) Recv() (*StreamMessageRequest, error) {
	m := new(StreamMessageRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type peeringListPoliciesServer struct {
	grpc.ServerStream
}

func (s *peeringListPoliciesServer) Send(m *Policy) error {
	return s.ServerStream.SendMsg(m)
}

func registerPeeringStreamChannel(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PeeringServer).StreamChannel(&peeringChannelServer{stream})
}

func registerPeeringListPolicies(srv interface{}, stream grpc.ServerStream) error {
	m := new(ListPolicyRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PeeringServer).ListPolicies(m, &peeringListPoliciesServer{stream})
}

// PeeringServiceDesc is the grpc.ServiceDesc for the Peering service,
// shaped the way protoc-gen-go-grpc emits it.
var PeeringServiceDesc = grpc.ServiceDesc{
	ServiceName: "peeringcoord.Peering",
	HandlerType: (*PeeringServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SetPortRange",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(PortRange)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(PeeringServer).SetPortRange(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peeringcoord.Peering/SetPortRange"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(PeeringServer).SetPortRange(ctx, req.(*PortRange))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "CreatePolicy",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(Policy)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(PeeringServer).CreatePolicy(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peeringcoord.Peering/CreatePolicy"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(PeeringServer).CreatePolicy(ctx, req.(*Policy))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "DestroyPolicy",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(Policy)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(PeeringServer).DestroyPolicy(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peeringcoord.Peering/DestroyPolicy"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(PeeringServer).DestroyPolicy(ctx, req.(*Policy))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "SetPolicies",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(SetPoliciesRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(PeeringServer).SetPolicies(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peeringcoord.Peering/SetPolicies"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(PeeringServer).SetPolicies(ctx, req.(*SetPoliciesRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamChannel",
			Handler:       registerPeeringStreamChannel,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "ListPolicies",
			Handler:       registerPeeringListPolicies,
			ServerStreams: true,
		},
	},
	Metadata: "peering.proto",
}

// RegisterPeeringServer registers srv as the implementation for the
// Peering service on s.
func RegisterPeeringServer(s grpc.ServiceRegistrar, srv PeeringServer) {
	s.RegisterService(&PeeringServiceDesc, srv)
}

// InfoServer is the informational service (§4.5).
type InfoServer interface {
	GetOwner(context.Context, *GetOwnerRequest) (*Owner, error)
	SearchOwner(*SearchOwnerRequest, Info_SearchOwnerServer) error
}

// Info_SearchOwnerServer is the server side of the server-streaming
// SearchOwner RPC.
type Info_SearchOwnerServer interface {
	Send(*Owner) error
	grpc.ServerStream
}

type infoSearchOwnerServer struct {
	grpc.ServerStream
}

func (s *infoSearchOwnerServer) Send(m *Owner) error {
	return s.ServerStream.SendMsg(m)
}

func registerInfoSearchOwner(srv interface{}, stream grpc.ServerStream) error {
	m := new(SearchOwnerRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(InfoServer).SearchOwner(m, &infoSearchOwnerServer{stream})
}

// UnimplementedInfoServer embeds in a concrete server to get forward
// compatibility with new methods added to InfoServer.
type UnimplementedInfoServer struct{}

func (UnimplementedInfoServer) GetOwner(context.Context, *GetOwnerRequest) (*Owner, error) {
	return nil, grpcUnimplemented("GetOwner")
}
func (UnimplementedInfoServer) SearchOwner(*SearchOwnerRequest, Info_SearchOwnerServer) error {
	return grpcUnimplemented("SearchOwner")
}

// InfoServiceDesc is the grpc.ServiceDesc for the Info service.
var InfoServiceDesc = grpc.ServiceDesc{
	ServiceName: "peeringcoord.Info",
	HandlerType: (*InfoServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetOwner",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(GetOwnerRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(InfoServer).GetOwner(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peeringcoord.Info/GetOwner"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(InfoServer).GetOwner(ctx, req.(*GetOwnerRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SearchOwner",
			Handler:       registerInfoSearchOwner,
			ServerStreams: true,
		},
	},
	Metadata: "info.proto",
}

// RegisterInfoServer registers srv as the implementation for the Info
// service on s.
func RegisterInfoServer(s grpc.ServiceRegistrar, srv InfoServer) {
	s.RegisterService(&InfoServiceDesc, srv)
}
