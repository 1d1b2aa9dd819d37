package port

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vidmentor/internal/daemon"
	"vidmentor/internal/logging"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
	"vidmentor/internal/settings"
)

const (
	defaultKeepalive = 20 * time.Second
	eventBuffer      = 64
)

// Server accepts persistent channels on a Unix socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	keepalive time.Duration
	listener  net.Listener
	http      *http.Server
	upgrader  websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the websocket server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, keepalive time.Duration, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("port server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "port"),
		keepalive: keepalive,
		listener:  listener,
		upgrader: websocket.Upgrader{
			// Reachable only through the local socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    serverCtx,
		cancel: cancel,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PortPath, s.handlePort)
	mux.HandleFunc("GET "+EventsPath, s.handleEvents)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return serverCtx },
	}
	return s, nil
}

// Serve starts accepting connections until Close.
func (s *Server) Serve() {
	s.logger.Debug("port server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(s.logger, "port server stopped", "port_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "long-running requests cannot reach the daemon"),
				logging.String(logging.FieldErrorHint, "restart the daemon"))
		}
	}()
}

// Close stops the server, drops open channels and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.http.Shutdown(shutdownCtx)
	_ = s.http.Close()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "port_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*wsConn, error) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn := &wsConn{Conn: raw}
	conn.SetReadLimit(maxFrameBytes)
	deadline := 2 * s.keepalive
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	return conn, nil
}

// keepAlive pings conn until ctx ends, then closes it. A failed ping also
// closes the connection.
func (s *Server) keepAlive(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	origin := strings.TrimSpace(r.URL.Query().Get("origin"))
	conn, err := s.upgrade(w, r)
	if err != nil {
		return
	}
	release := s.daemon.HoldChannel()
	defer release()

	ctx, cancel := context.WithCancel(r.Context())
	logger := s.logger.With(logging.String(logging.FieldOrigin, origin))
	logger.Debug("channel opened")

	var inflight sync.WaitGroup
	go s.keepAlive(ctx, conn)
	defer func() {
		cancel()
		inflight.Wait()
		_ = conn.Close()
		logger.Debug("channel closed")
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) && ctx.Err() == nil {
				logger.Debug("channel read ended", logging.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * s.keepalive))

		var req protocol.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			bad := services.Wrap(services.ErrValidation, "port", "decode", "malformed request frame", err)
			if werr := conn.writeJSON(protocol.Failure("", bad)); werr != nil {
				return
			}
			continue
		}

		inflight.Add(1)
		go func(req protocol.Request) {
			defer inflight.Done()
			resp := s.daemon.Dispatch(ctx, req, origin)
			if ctx.Err() != nil {
				return
			}
			if err := conn.writeJSON(resp); err != nil {
				logger.Debug("response write failed",
					logging.String(logging.FieldCorrelationID, req.RequestID),
					logging.Error(err))
			}
		}(req)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrade(w, r)
	if err != nil {
		return
	}
	defer conn.Close()
	release := s.daemon.HoldChannel()
	defer release()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes := make(chan settings.Change, eventBuffer)
	sub := s.daemon.Store().Subscribe(func(change settings.Change) {
		select {
		case changes <- change:
		default:
			logging.WarnWithContext(s.logger, "event subscriber too slow; dropping change", "port_event_dropped",
				logging.String("key", change.Key),
				logging.String(logging.FieldImpact, "a foreground cache may serve a stale value until its next read"),
				logging.String(logging.FieldErrorHint, "the subscriber should drain events faster"))
		}
	})
	defer sub.Unsubscribe()

	// Drain inbound frames so pongs and close frames are processed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.closeNormal()
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case change := <-changes:
			if err := conn.writeJSON(change); err != nil {
				return
			}
		}
	}
}
