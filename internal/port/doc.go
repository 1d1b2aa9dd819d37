// Package port is the persistent transport: a websocket duplex channel served
// over the daemon's second Unix socket.
//
// /v1/port carries request and response envelopes. A connection holds the
// daemon awake for as long as it is open, and the server pings it every
// keep-alive interval. Many requests may be in flight on one Channel; each
// response is matched to its caller by requestId through a pending map, and a
// frame whose requestId has no waiter is logged and dropped. Closing the
// channel cancels every request still running on the daemon side.
//
// /v1/events streams settings changes as JSON so foreground caches can
// invalidate without polling.
package port
