//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/building-safety/internal/api/grpc/twin"
	"github.com/oshokin/building-safety/internal/config"
)

// Client wraps the twin gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the device.
	conn *grpc.ClientConn
	// api invokes the twin service.
	api *twin.TwinClient

	// callTimeout is the default timeout for non-blocking calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial prepares a gRPC connection to a device's twin shim.
// The shim is plaintext; it is meant for loopback or a trusted lab network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial twin: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         twin.NewTwinClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Snapshot returns the device's cell contents.
func (c *Client) Snapshot(ctx context.Context) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Snapshot(callCtx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	return resp, nil
}

// AwaitTransition blocks until the door starts moving. Only ctx bounds the wait.
func (c *Client) AwaitTransition(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.api.AwaitTransition(ctx)
	if err != nil {
		return nil, fmt.Errorf("await transition: %w", err)
	}

	return resp, nil
}

// Complete settles the door's in-flight transition.
func (c *Client) Complete(ctx context.Context) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Complete(callCtx)
	if err != nil {
		return nil, fmt.Errorf("complete transition: %w", err)
	}

	return resp, nil
}

// Scan presents a card code and returns the verdict character. The reader
// waits for the Overseer, so only ctx bounds the call.
func (c *Client) Scan(ctx context.Context, code string) (string, error) {
	verdict, err := c.api.Scan(ctx, code)
	if err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}

	return verdict, nil
}

// SetTemperature writes a new sensor reading.
func (c *Client) SetTemperature(ctx context.Context, value float32) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.SetTemperature(callCtx, value)
	if err != nil {
		return nil, fmt.Errorf("set temperature: %w", err)
	}

	return resp, nil
}

// SetActive switches a call point.
func (c *Client) SetActive(ctx context.Context, active bool) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.SetActive(callCtx, active)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}

	return resp, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
