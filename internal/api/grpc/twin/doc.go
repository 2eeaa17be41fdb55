// Package twin is the gRPC shim through which the physical twin (a simulator,
// a test, or twinctl) drives a device's shared state cell.
//
// The service is described by hand with well-known protobuf types, so no
// generated code is needed: requests and responses are emptypb.Empty,
// structpb.Struct and the wrapperspb scalars. Each device exposes the subset
// of operations it implements; the rest answer codes.Unimplemented.
package twin
