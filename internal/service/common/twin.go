//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/oshokin/building-safety/internal/api/grpc/twin"
	"github.com/oshokin/building-safety/internal/logger"
)

// ListenTwin binds the twin shim address. Binding happens before the device
// announces itself so a busy port is a startup error.
func ListenTwin(ctx context.Context, address string) (net.Listener, error) {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen twin on %s: %w", address, err)
	}

	return lis, nil
}

// ServeTwin serves the twin shim for device on lis and blocks until ctx is
// cancelled or the server fails.
func ServeTwin(ctx context.Context, lis net.Listener, device twin.Device) error {
	grpcServer := grpc.NewServer()
	twin.RegisterTwinServer(grpcServer, twin.NewServer(device))

	logger.InfoKV(ctx, "Twin shim listening", "twin_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve twin: %w", err)
	}

	<-done
	logger.Info(ctx, "Twin shim stopped")

	return nil
}
