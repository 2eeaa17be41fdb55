package twin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "buildingsafety.twin.v1.Twin"

// Method names.
const (
	MethodSnapshot        = "Snapshot"
	MethodAwaitTransition = "AwaitTransition"
	MethodComplete        = "Complete"
	MethodScan            = "Scan"
	MethodSetTemperature  = "SetTemperature"
	MethodSetActive       = "SetActive"
)

// TwinServer is the server API of the twin service.
type TwinServer interface {
	Snapshot(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	AwaitTransition(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Complete(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Scan(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	SetTemperature(ctx context.Context, in *wrapperspb.FloatValue) (*structpb.Struct, error)
	SetActive(ctx context.Context, in *wrapperspb.BoolValue) (*structpb.Struct, error)
}

// RegisterTwinServer registers srv on s.
func RegisterTwinServer(s grpc.ServiceRegistrar, srv TwinServer) {
	s.RegisterService(&serviceDesc, srv)
}

// FullMethod returns the /service/method path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

//nolint:gochecknoglobals // Service descriptors are registered by pointer.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TwinServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSnapshot, TwinServer.Snapshot),
		unary(MethodAwaitTransition, TwinServer.AwaitTransition),
		unary(MethodComplete, TwinServer.Complete),
		unary(MethodScan, TwinServer.Scan),
		unary(MethodSetTemperature, TwinServer.SetTemperature),
		unary(MethodSetActive, TwinServer.SetActive),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "twin/v1/twin.proto",
}

// unary builds the method descriptor of a unary call, decoding the request
// into a fresh Req and running it through the server interceptor if any.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](
	method string,
	call func(TwinServer, context.Context, PReq) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(TwinServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TwinServer), ctx, req.(PReq))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

// TwinClient invokes the twin service over a client connection.
type TwinClient struct {
	cc grpc.ClientConnInterface
}

// NewTwinClient wraps cc.
func NewTwinClient(cc grpc.ClientConnInterface) *TwinClient {
	return &TwinClient{cc: cc}
}

// Snapshot returns the device's cell contents.
func (c *TwinClient) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodSnapshot), new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// AwaitTransition blocks until the door is moving.
func (c *TwinClient) AwaitTransition(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodAwaitTransition), new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Complete finishes the door's in-flight transition.
func (c *TwinClient) Complete(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodComplete), new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Scan presents a card code and returns the verdict character.
func (c *TwinClient) Scan(ctx context.Context, code string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, FullMethod(MethodScan), wrapperspb.String(code), out, opts...); err != nil {
		return "", err
	}

	return out.GetValue(), nil
}

// SetTemperature writes a new sensor reading.
func (c *TwinClient) SetTemperature(ctx context.Context, value float32, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodSetTemperature), wrapperspb.Float(value), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// SetActive switches a call point on or off.
func (c *TwinClient) SetActive(ctx context.Context, active bool, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodSetActive), wrapperspb.Bool(active), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
