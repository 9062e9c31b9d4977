package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/rmrobinson/floodlight/services/device"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a StateService backed by a remote state service daemon.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a client using the supplied connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{
		conn: conn,
	}
}

// FetchDeviceState retrieves the device state from the remote service.
// A response which does not decode into a valid state is reported as device.ErrInvalidState.
func (c *Client) FetchDeviceState(ctx context.Context) (*device.State, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, device.GetDeviceStateMethod, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("fetching device state: %w", err)
	}
	return device.FromStruct(out)
}

// WatchDeviceState streams the device state to fn until the context is cancelled or the server ends the stream.
// The first call carries the current state.
func (c *Client) WatchDeviceState(ctx context.Context, fn func(*device.State)) error {
	stream, err := c.conn.NewStream(ctx, &device.StateServiceDesc.Streams[0], device.WatchDeviceStateMethod)
	if err != nil {
		return fmt.Errorf("opening watch stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("sending watch request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing watch request: %w", err)
	}

	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		state, err := device.FromStruct(msg)
		if err != nil {
			return err
		}
		fn(state)
	}
}
