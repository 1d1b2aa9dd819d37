package port

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"vidmentor/internal/logging"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
)

// ErrChannelClosed reports a call on a channel that has already closed.
var ErrChannelClosed = errors.New("channel closed")

// Channel is one open persistent connection. It is safe for concurrent use.
type Channel struct {
	conn   *wsConn
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan protocol.Response
	closed  bool
	err     error
	done    chan struct{}
}

func dialer(socketPath string) *websocket.Dialer {
	return &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
}

func endpoint(path, origin string) string {
	u := url.URL{Scheme: "ws", Host: "vidmentor", Path: path}
	if origin != "" {
		u.RawQuery = url.Values{"origin": {origin}}.Encode()
	}
	return u.String()
}

// Dial opens a channel to the daemon's port socket.
func Dial(ctx context.Context, socketPath, origin string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	raw, _, err := dialer(socketPath).DialContext(ctx, endpoint(PortPath, origin), nil)
	if err != nil {
		return nil, err
	}
	raw.SetReadLimit(maxFrameBytes)
	ch := &Channel{
		conn:    &wsConn{Conn: raw},
		logger:  logging.NewComponentLogger(logger, "port"),
		pending: make(map[string]chan protocol.Response),
		done:    make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

// Call sends req and waits for the response carrying the same requestId.
// When ctx ends first the request is abandoned and a timeout error returned.
func (c *Channel) Call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.RequestID == "" {
		return protocol.Response{}, services.Wrap(services.ErrValidation, "port", "call", "request has no requestId", nil)
	}
	waiter := make(chan protocol.Response, 1)
	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return protocol.Response{}, services.Wrap(services.ErrTransport, "port", "call", ErrChannelClosed.Error(), err)
	}
	if _, dup := c.pending[req.RequestID]; dup {
		c.mu.Unlock()
		return protocol.Response{}, services.Wrap(services.ErrValidation, "port", "call",
			fmt.Sprintf("requestId %s already in flight", req.RequestID), nil)
	}
	c.pending[req.RequestID] = waiter
	c.mu.Unlock()

	if err := c.conn.writeJSON(req); err != nil {
		c.forget(req.RequestID)
		return protocol.Response{}, services.Wrap(services.ErrTransport, "port", "send", "write request", err)
	}

	select {
	case resp := <-waiter:
		return resp, nil
	case <-ctx.Done():
		c.forget(req.RequestID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.Response{}, services.Wrap(services.ErrTimeout, "port", "call",
				fmt.Sprintf("no response to %s within deadline", req.Type), ctx.Err())
		}
		return protocol.Response{}, ctx.Err()
	case <-c.done:
		// A response may have landed just before the channel closed.
		select {
		case resp := <-waiter:
			return resp, nil
		default:
		}
		return protocol.Response{}, services.Wrap(services.ErrTransport, "port", "call",
			"channel closed before response", c.closeErr())
	}
}

func (c *Channel) forget(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

func (c *Channel) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pending reports how many calls are waiting for a response.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close tears the channel down; outstanding calls fail.
func (c *Channel) Close() error {
	c.conn.closeNormal()
	err := c.conn.Close()
	c.shutdown(ErrChannelClosed)
	return err
}

func (c *Channel) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	c.pending = map[string]chan protocol.Response{}
	close(c.done)
}

func (c *Channel) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		var resp protocol.Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			c.logger.Debug("dropping undecodable frame", logging.Error(err))
			continue
		}
		c.mu.Lock()
		waiter, ok := c.pending[resp.RequestID]
		if ok {
			delete(c.pending, resp.RequestID)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("ignoring response with unknown requestId",
				logging.String(logging.FieldCorrelationID, resp.RequestID))
			continue
		}
		waiter <- resp
	}
}
