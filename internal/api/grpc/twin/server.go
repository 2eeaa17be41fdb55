package twin

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Device is implemented by every device's twin adapter.
type Device interface {
	// Snapshot returns the cell contents as structpb-compatible values.
	Snapshot(ctx context.Context) map[string]any
}

// Actuator is a device whose transitions the twin completes.
type Actuator interface {
	// AwaitTransition blocks until a transition is in flight.
	AwaitTransition(ctx context.Context) error
	// Complete settles the in-flight transition.
	Complete(ctx context.Context) error
}

// Scanner is a device that accepts card codes.
type Scanner interface {
	// Scan presents code and returns the verdict character.
	Scan(ctx context.Context, code string) (string, error)
}

// Thermometer is a device whose temperature the twin writes.
type Thermometer interface {
	SetTemperature(ctx context.Context, value float32) error
}

// Switch is a device the twin turns on and off.
type Switch interface {
	SetActive(ctx context.Context, active bool) error
}

// ErrNotInFlight is returned by Complete when nothing is moving.
var ErrNotInFlight = errors.New("no transition in flight")

// Server implements TwinServer on top of a Device.
type Server struct {
	// device is the adapter the calls are forwarded to.
	device Device
}

// NewServer wires the provided device into a gRPC handler.
func NewServer(device Device) *Server {
	return &Server{
		device: device,
	}
}

// Snapshot returns the device's cell contents.
func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.snapshot(ctx)
}

// AwaitTransition blocks until the door is moving and returns the snapshot.
func (s *Server) AwaitTransition(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	actuator, ok := s.device.(Actuator)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "device has no actuator")
	}

	if err := actuator.AwaitTransition(ctx); err != nil {
		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// Complete settles the in-flight transition and returns the snapshot.
func (s *Server) Complete(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	actuator, ok := s.device.(Actuator)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "device has no actuator")
	}

	if err := actuator.Complete(ctx); err != nil {
		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// Scan presents a card code and returns the verdict.
func (s *Server) Scan(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	scanner, ok := s.device.(Scanner)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "device is not a card reader")
	}

	if in == nil || in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	verdict, err := scanner.Scan(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(verdict), nil
}

// SetTemperature writes a new reading and returns the snapshot.
func (s *Server) SetTemperature(ctx context.Context, in *wrapperspb.FloatValue) (*structpb.Struct, error) {
	thermometer, ok := s.device.(Thermometer)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "device is not a temperature sensor")
	}

	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "temperature is required")
	}

	if err := thermometer.SetTemperature(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// SetActive switches the device and returns the snapshot.
func (s *Server) SetActive(ctx context.Context, in *wrapperspb.BoolValue) (*structpb.Struct, error) {
	sw, ok := s.device.(Switch)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "device is not a switch")
	}

	if err := sw.SetActive(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// snapshot converts the device snapshot into a Struct.
func (s *Server) snapshot(ctx context.Context) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(s.device.Snapshot(ctx))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}

	return out, nil
}

// ErrInvalidArgument marks device errors caused by bad input.
var ErrInvalidArgument = errors.New("invalid argument")

// toStatus maps device errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrNotInFlight):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
