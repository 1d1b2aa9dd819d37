package port

import (
	"context"
	"log/slog"

	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
)

// Client delivers each request over its own channel, opened for the call and
// closed afterwards. The open channel keeps the daemon from suspending while
// the request runs.
type Client struct {
	SocketPath string
	Origin     string
	Logger     *slog.Logger
}

// Send implements the persistent strategy. The caller bounds the call with
// ctx; expiry tears the channel down.
func (c Client) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	ch, err := Dial(ctx, c.SocketPath, c.Origin, c.Logger)
	if err != nil {
		if ctx.Err() != nil {
			return protocol.Response{}, services.Wrap(services.ErrTimeout, "port", "dial", "daemon did not accept the channel in time", err)
		}
		return protocol.Response{}, err
	}
	defer ch.Close()
	return ch.Call(ctx, req)
}
