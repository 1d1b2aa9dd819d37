package port_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vidmentor/internal/config"
	"vidmentor/internal/daemon"
	"vidmentor/internal/port"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
	"vidmentor/internal/settings"
	"vidmentor/internal/testsupport"
)

// delayDispatcher answers after data.delayMs and echoes the origin.
type delayDispatcher struct{}

func (delayDispatcher) Dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	if raw, ok := req.Data["delayMs"].(float64); ok {
		select {
		case <-time.After(time.Duration(raw) * time.Millisecond):
		case <-ctx.Done():
		}
	}
	origin, _ := services.OriginFromContext(ctx)
	return protocol.Success(req.RequestID, map[string]string{"origin": origin, "type": string(req.Type)})
}

func startServer(t *testing.T) (string, *daemon.Daemon, *settings.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, store := startDaemon(t, cfg)
	srv := servePort(t, cfg.Paths.PortSocketPath, d)
	t.Cleanup(srv.Close)
	return cfg.Paths.PortSocketPath, d, store
}

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *settings.Store) {
	t.Helper()
	store := testsupport.MustOpenSettings(t, cfg)
	d, err := daemon.New(cfg, store, delayDispatcher{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return d, store
}

func servePort(t *testing.T, path string, d *daemon.Daemon) *port.Server {
	t.Helper()
	srv, err := port.NewServer(context.Background(), path, d, time.Second, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping port server test: %v", err)
		}
		t.Fatalf("port.NewServer: %v", err)
	}
	srv.Serve()
	return srv
}

// fakePeer serves one websocket on a unix socket and hands each decoded
// request to reply.
func fakePeer(t *testing.T, reply func(conn *websocket.Conn, req protocol.Request)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix listener unavailable: %v", err)
	}
	upgrader := websocket.Upgrader{}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req protocol.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			reply(conn, req)
		}
	})}
	go func() {
		_ = srv.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
	})
	return path
}

func TestCallRoundTripCarriesOrigin(t *testing.T) {
	path, d, _ := startServer(t)
	ctx := context.Background()
	ch, err := port.Dial(ctx, path, "content", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	resp, err := ch.Call(ctx, protocol.Request{Type: protocol.GetSettings, RequestID: "p-1"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var body map[string]string
	if err := resp.Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID != "p-1" || body["origin"] != "content" {
		t.Fatalf("unexpected response %+v body %v", resp, body)
	}
	if got := d.Status(ctx).OpenChannels; got != 1 {
		t.Fatalf("expected one open channel, got %d", got)
	}
}

func TestConcurrentCallsResolveOutOfOrder(t *testing.T) {
	path, _, _ := startServer(t)
	ctx := context.Background()
	ch, err := port.Dial(ctx, path, "content", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	delays := []int{150, 10, 80}
	var wg sync.WaitGroup
	errs := make(chan error, len(delays))
	for i, delay := range delays {
		wg.Add(1)
		go func(id string, delay int) {
			defer wg.Done()
			resp, err := ch.Call(ctx, protocol.Request{
				Type:      protocol.AnalyzeFrame,
				Data:      map[string]any{"delayMs": delay},
				RequestID: id,
			})
			if err != nil {
				errs <- err
				return
			}
			if resp.RequestID != id {
				errs <- errors.New("response " + resp.RequestID + " delivered to " + id)
			}
		}("req-"+strconv.Itoa(i), delay)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if ch.Pending() != 0 {
		t.Fatalf("expected no pending calls, got %d", ch.Pending())
	}
}

func TestCallIgnoresMismatchedResponses(t *testing.T) {
	path := fakePeer(t, func(conn *websocket.Conn, req protocol.Request) {
		_ = conn.WriteJSON(protocol.Success("someone-else", "stray"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(protocol.Success(req.RequestID, "mine"))
	})
	ctx := context.Background()
	ch, err := port.Dial(ctx, path, "", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	resp, err := ch.Call(ctx, protocol.Request{Type: protocol.GetSettings, RequestID: "want"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var body string
	if err := resp.Decode(&body); err != nil || body != "mine" {
		t.Fatalf("expected own response, got %q (%v)", body, err)
	}
}

func TestCallTimesOut(t *testing.T) {
	path := fakePeer(t, func(*websocket.Conn, protocol.Request) {})
	ch, err := port.Dial(context.Background(), path, "", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = ch.Call(ctx, protocol.Request{Type: protocol.AnalyzeFrame, RequestID: "slow"})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if ch.Pending() != 0 {
		t.Fatalf("timed out call should be forgotten")
	}
}

func TestCallValidatesRequestID(t *testing.T) {
	path := fakePeer(t, func(*websocket.Conn, protocol.Request) {})
	ctx := context.Background()
	ch, err := port.Dial(ctx, path, "", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	if _, err := ch.Call(ctx, protocol.Request{Type: protocol.GetSettings}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	go func() {
		_, _ = ch.Call(short, protocol.Request{Type: protocol.GetSettings, RequestID: "dup"})
	}()
	deadline := time.Now().Add(time.Second)
	for ch.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := ch.Call(ctx, protocol.Request{Type: protocol.GetSettings, RequestID: "dup"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	path := fakePeer(t, func(*websocket.Conn, protocol.Request) {})
	ctx := context.Background()
	ch, err := port.Dial(ctx, path, "", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = ch.Close()
	if _, err := ch.Call(ctx, protocol.Request{Type: protocol.GetSettings, RequestID: "late"}); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestClientSendOpensAndClosesChannel(t *testing.T) {
	path, d, _ := startServer(t)
	client := port.Client{SocketPath: path, Origin: "popup"}
	resp, err := client.Send(context.Background(), protocol.Request{Type: protocol.TestGemini, RequestID: "c-1"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !resp.Success || resp.RequestID != "c-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	deadline := time.Now().Add(time.Second)
	for d.Status(context.Background()).OpenChannels != 0 {
		if time.Now().After(deadline) {
			t.Fatal("channel was not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchChangesStreamsSettingsChanges(t *testing.T) {
	path, d, store := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan settings.Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- port.WatchChanges(ctx, path, "popup", nil, func(change settings.Change) {
			changes <- change
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for d.Status(ctx).OpenChannels == 0 {
		if time.Now().After(deadline) {
			t.Fatal("events stream never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := store.Set(ctx, settings.KeyExtensionEnabled, false, "options"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case change := <-changes:
		if change.Key != settings.KeyExtensionEnabled || change.Origin != "options" {
			t.Fatalf("unexpected change %+v", change)
		}
		var enabled bool
		if err := json.Unmarshal(change.New, &enabled); err != nil || enabled {
			t.Fatalf("unexpected new value %s", change.New)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchChanges did not return after cancel")
	}
}

func TestChangeFollowerReconnectsAcrossRestarts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.Paths.PortSocketPath
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connects := make(chan struct{}, 4)
	changes := make(chan settings.Change, 16)
	var wakes atomic.Int32
	wake := func(context.Context) error {
		wakes.Add(1)
		return nil
	}
	onConnect := func() {
		select {
		case connects <- struct{}{}:
		default:
		}
	}
	follower := port.ChangeFollower{
		SocketPath: path,
		Origin:     "monitor",
		Wake:       wake,
		OnConnect:  onConnect,
		MinDelay:   10 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
	}
	done := make(chan error, 1)
	go func() {
		done <- follower.Run(ctx, func(change settings.Change) {
			changes <- change
		})
	}()

	// Nothing listens yet; the follower keeps retrying.
	time.Sleep(60 * time.Millisecond)
	if wakes.Load() == 0 {
		t.Fatal("expected a wake before dialing")
	}

	d, store := startDaemon(t, cfg)
	awaitConnect := func() {
		t.Helper()
		select {
		case <-connects:
		case <-time.After(3 * time.Second):
			t.Fatal("follower never connected")
		}
	}
	// A change can race a reconnect, so keep writing until one from origin
	// arrives. Leftovers from the previous phase are skipped.
	expectChange := func(origin string) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for value := true; time.Now().Before(deadline); value = !value {
			if err := store.Set(ctx, settings.KeyExtensionEnabled, value, origin); err != nil {
				t.Fatalf("Set: %v", err)
			}
			wait := time.After(100 * time.Millisecond)
		drain:
			for {
				select {
				case change := <-changes:
					if change.Origin == origin {
						return
					}
				case <-wait:
					break drain
				}
			}
		}
		t.Fatalf("change from %s not delivered", origin)
	}

	first := servePort(t, path, d)
	awaitConnect()
	expectChange("options")

	first.Close()
	second := servePort(t, path, d)
	t.Cleanup(second.Close)
	awaitConnect()
	expectChange("popup")

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
