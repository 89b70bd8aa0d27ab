// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"path"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cerrors "netsys.dev/peeringcoord/internal/errors"
)

func methodName(fullMethod string) string {
	return path.Base(fullMethod)
}

// UnaryInterceptor records a request count and, on error, an error count
// tagged with the cerrors.Kind that produced it. It is chained ahead of
// (outside) the auth interceptor so authentication failures are counted
// too, attributed to "unauthenticated".
func (r *Registry) UnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	r.record(methodName(info.FullMethod), err)
	return resp, err
}

// StreamInterceptor is the streaming analog of UnaryInterceptor, covering
// the long-lived StreamChannel RPC.
func (r *Registry) StreamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	err := handler(srv, ss)
	r.record(methodName(info.FullMethod), err)
	return err
}

func (r *Registry) record(method string, err error) {
	code := status.Code(err)
	r.RPCRequests.WithLabelValues(method, code.String()).Inc()
	if code != codes.OK {
		kind := cerrors.GetKind(err)
		if kind == cerrors.KindUnknown {
			// Handlers return gRPC status errors, which no longer carry the
			// cerrors.Error; recover the Kind from the status code.
			switch code {
			case codes.InvalidArgument:
				kind = cerrors.KindValidation
			case codes.NotFound:
				kind = cerrors.KindNotFound
			case codes.AlreadyExists:
				kind = cerrors.KindConflict
			case codes.PermissionDenied:
				kind = cerrors.KindPermission
			case codes.Unauthenticated:
				kind = cerrors.KindUnauthenticated
			case codes.Unavailable:
				kind = cerrors.KindUnavailable
			case codes.DeadlineExceeded:
				kind = cerrors.KindTimeout
			case codes.Internal:
				kind = cerrors.KindInternal
			}
		}
		r.RPCErrors.WithLabelValues(method, kind.String()).Inc()
	}
}
