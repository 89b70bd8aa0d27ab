// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec by marshaling messages as JSON. There
// is no .proto source and no protoc in this tree (see the package doc
// comment), so the real protobuf wire format isn't reproducible without
// codegen; registering this under grpc's default codec name ("proto")
// keeps every ServiceDesc, RegisterXServer and dec/SendMsg/RecvMsg call
// above working exactly as protoc-gen-go-grpc output would, while the
// actual bytes on the wire are JSON rather than a protobuf encoding.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
