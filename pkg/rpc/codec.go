// Package rpc holds wire-format plumbing shared by the gRPC server adapter
// (pkg/server) and the gRPC client transport (pkg/client): since no
// compiled .proto schema exists for this protocol, both sides exchange
// plain JSON over gRPC's framing instead of protobuf-encoded messages.
package rpc

import "encoding/json"

// JSONCodecName is the name JSONCodec reports. The codec is not registered
// globally: the server installs it with grpc.ForceServerCodec and the
// client with grpc.ForceCodec.
const JSONCodecName = "json"

// JSONCodec implements google.golang.org/grpc/encoding.Codec by delegating
// to encoding/json, letting the A2A service run over gRPC's HTTP/2 framing
// and flow control without a generated protobuf stub.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSONCodec) Name() string { return JSONCodecName }
