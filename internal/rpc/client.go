package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote IntentGuard service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req any) (map[string]any, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Evaluate evaluates a plan remotely and returns the trace as a map.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (map[string]any, error) {
	return c.call(ctx, MethodEvaluate, req)
}

// Approve approves a pending execution.
func (c *Client) Approve(ctx context.Context, req DecisionRequest) (map[string]any, error) {
	return c.call(ctx, MethodApprove, req)
}

// Deny denies a pending execution.
func (c *Client) Deny(ctx context.Context, req DecisionRequest) (map[string]any, error) {
	return c.call(ctx, MethodDeny, req)
}

// ListPending lists pending approvals.
func (c *Client) ListPending(ctx context.Context) (map[string]any, error) {
	return c.call(ctx, MethodListPending, map[string]any{})
}
