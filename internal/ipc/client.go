package ipc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"vidmentor/internal/protocol"
)

const defaultDialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	return DialContext(context.Background(), path, defaultDialTimeout)
}

// DialContext connects with an explicit timeout, honoring ctx cancellation.
func DialContext(ctx context.Context, path string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	call := c.client.Go(ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		_ = c.Close()
		return ctx.Err()
	case done := <-call.Done:
		return done.Error
	}
}

// Dispatch sends one envelope and waits for the routed response.
func (c *Client) Dispatch(ctx context.Context, req protocol.Request, origin string) (protocol.Response, error) {
	var resp DispatchResponse
	if err := c.call(ctx, "Dispatch", DispatchRequest{Origin: origin, Request: req}, &resp); err != nil {
		return protocol.Response{}, err
	}
	return resp.Response, nil
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context, reason string) (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call(ctx, "Shutdown", ShutdownRequest{Reason: reason}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sender delivers requests over short-lived connections: dial, dispatch,
// close.
type Sender struct {
	SocketPath  string
	Origin      string
	DialTimeout time.Duration
}

// Send implements the transient strategy.
func (s Sender) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	client, err := DialContext(ctx, s.SocketPath, s.DialTimeout)
	if err != nil {
		return protocol.Response{}, err
	}
	defer client.Close()
	return client.Dispatch(ctx, req, s.Origin)
}
