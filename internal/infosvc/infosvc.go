// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package infosvc implements the coordinator's informational gRPC service
// (§4.5): read-only owner lookups with no side effects, split out from the
// peering control plane because nothing in it needs a primary-client
// election or a store transaction. Its RPCs pass through the same auth
// interceptor as the peering service.
package infosvc

import (
	"context"

	cerrors "netsys.dev/peeringcoord/internal/errors"
	"netsys.dev/peeringcoord/internal/model"
	"netsys.dev/peeringcoord/internal/pb"
	"netsys.dev/peeringcoord/internal/store"
)

// Server implements pb.InfoServer against a Store.
type Server struct {
	pb.UnimplementedInfoServer

	store *store.Store
}

func New(s *store.Store) *Server {
	return &Server{store: s}
}

func grpcErr(err error) error {
	if err == nil {
		return nil
	}
	return cerrors.GRPCStatus(err).Err()
}

// GetOwner looks up a single owner by name, by the ASN of one of its ASes,
// or both. At least one of the two must be set.
func (s *Server) GetOwner(ctx context.Context, req *pb.GetOwnerRequest) (*pb.Owner, error) {
	var owner *model.Owner
	var err error

	switch {
	case req.Name != "" && req.Asn != "":
		asn, parseErr := model.ParseASN(req.Asn)
		if parseErr != nil {
			return nil, grpcErr(cerrors.Wrap(parseErr, cerrors.KindValidation, "malformed asn"))
		}
		owner, err = s.store.GetOwnerByNameAndASN(ctx, req.Name, asn)
	case req.Name != "":
		owner, err = s.store.GetOwnerByName(ctx, req.Name)
	case req.Asn != "":
		asn, parseErr := model.ParseASN(req.Asn)
		if parseErr != nil {
			return nil, grpcErr(cerrors.Wrap(parseErr, cerrors.KindValidation, "malformed asn"))
		}
		owner, err = s.store.GetOwnerByASN(ctx, asn)
	default:
		return nil, grpcErr(cerrors.New(cerrors.KindValidation, "name or asn must be set"))
	}
	if err != nil {
		return nil, grpcErr(err)
	}

	return s.toPB(ctx, owner)
}

// SearchOwner streams every owner whose long name contains the given
// substring, case-insensitively. An empty substring matches every owner.
func (s *Server) SearchOwner(req *pb.SearchOwnerRequest, stream pb.Info_SearchOwnerServer) error {
	owners, err := s.store.SearchOwnersByLongName(stream.Context(), req.LongName)
	if err != nil {
		return grpcErr(cerrors.Wrap(err, cerrors.KindInternal, "search owners"))
	}

	for i := range owners {
		out, err := s.toPB(stream.Context(), &owners[i])
		if err != nil {
			return grpcErr(err)
		}
		if err := stream.Send(out); err != nil {
			return err
		}
	}
	return nil
}

// toPB fills out an owner's ASN list ascending by numeric value (§C.6),
// which OwnerASNs already guarantees via its ORDER BY.
func (s *Server) toPB(ctx context.Context, owner *model.Owner) (*pb.Owner, error) {
	asns, err := s.store.OwnerASNs(ctx, owner.ID)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindInternal, "list owner asns")
	}
	out := &pb.Owner{Name: owner.Name, LongName: owner.LongName, Contact: owner.Contact}
	for _, asn := range asns {
		out.Asns = append(out.Asns, model.FormatASN(asn))
	}
	return out, nil
}
