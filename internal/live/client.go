package live

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client talks to a FlowService server.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// NewClient creates a client targeting the given gRPC address. Plaintext
// transport is used unless opts say otherwise.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{addr: addr, conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Analyze asks the server to report on raw. Empty raw reports on the
// server's desk.
func (c *Client) Analyze(ctx context.Context, raw string) (Report, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, analyzeMethod, wrapperspb.String(raw), out); err != nil {
		return Report{}, fmt.Errorf("analyze: %w", err)
	}
	return structToReport(out)
}

// Watch streams desk reports to fn until ctx is cancelled, the stream ends,
// or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(Report) error) error {
	stream, err := c.conn.NewStream(ctx, &FlowServiceDesc.Streams[0], watchMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing send: %w", err)
	}

	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving report: %w", err)
		}
		report, err := structToReport(msg)
		if err != nil {
			return err
		}
		if err := fn(report); err != nil {
			return err
		}
	}
}
