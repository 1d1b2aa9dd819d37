package transport_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
	"vidmentor/internal/transport"
)

type step struct {
	resp protocol.Response
	err  error
}

// scriptedSender replays steps in order and records what it was sent.
type scriptedSender struct {
	name  string
	log   *[]string
	mu    *sync.Mutex
	steps []step
	reqs  []protocol.Request
	block bool
}

func (s *scriptedSender) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	s.mu.Lock()
	*s.log = append(*s.log, s.name)
	s.reqs = append(s.reqs, req)
	var next step
	if len(s.steps) > 0 {
		next, s.steps = s.steps[0], s.steps[1:]
	} else {
		next = step{resp: protocol.Success(req.RequestID, "ok")}
	}
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return protocol.Response{}, ctx.Err()
	}
	if next.err == nil && next.resp.RequestID == "" {
		next.resp.RequestID = req.RequestID
	}
	return next.resp, next.err
}

type harness struct {
	log        []string
	mu         sync.Mutex
	sleeps     []time.Duration
	wakes      int
	transient  *scriptedSender
	persistent *scriptedSender
}

func newHarness(transientSteps, persistentSteps []step) *harness {
	h := &harness{}
	h.transient = &scriptedSender{name: "transient", log: &h.log, mu: &h.mu, steps: transientSteps}
	h.persistent = &scriptedSender{name: "persistent", log: &h.log, mu: &h.mu, steps: persistentSteps}
	return h
}

func (h *harness) messenger(opts ...transport.Option) *transport.Messenger {
	base := []transport.Option{
		transport.WithRetry(3, 100*time.Millisecond),
		transport.WithIDGenerator(func() string { return "generated-id" }),
		transport.WithSleeper(func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.log = append(h.log, "sleep")
			h.mu.Unlock()
			return nil
		}),
		transport.WithWaker(transport.WakerFunc(func(context.Context) error {
			h.mu.Lock()
			h.wakes++
			h.mu.Unlock()
			return nil
		})),
	}
	return transport.New(h.transient, h.persistent, append(base, opts...)...)
}

func refused() error {
	return fmt.Errorf("dial unix vm.sock: %w", syscall.ECONNREFUSED)
}

func TestPersistentTypesUsePersistentSender(t *testing.T) {
	h := newHarness(nil, nil)
	resp, err := h.messenger().Send(context.Background(), protocol.Request{Type: protocol.SimplifyText})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.RequestID != "generated-id" {
		t.Fatalf("expected generated request id, got %q", resp.RequestID)
	}
	if strings.Join(h.log, ",") != "persistent" {
		t.Fatalf("unexpected call order %v", h.log)
	}
}

func TestTransientRetriesThenFallsBackWithSameRequestID(t *testing.T) {
	h := newHarness([]step{{err: refused()}, {err: io.EOF}, {err: syscall.ENOENT}}, nil)
	resp, err := h.messenger().Send(context.Background(), protocol.Request{Type: protocol.GetSettings, RequestID: "r-1"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !resp.Success || resp.RequestID != "r-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	want := "transient,sleep,transient,sleep,transient,persistent"
	if got := strings.Join(h.log, ","); got != want {
		t.Fatalf("call order = %s, want %s", got, want)
	}
	if len(h.sleeps) != 2 || h.sleeps[0] != 100*time.Millisecond || h.sleeps[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff %v", h.sleeps)
	}
	if h.wakes != 3 {
		t.Fatalf("expected a wake before each retry and the fallback, got %d", h.wakes)
	}
	if h.persistent.reqs[0].RequestID != "r-1" {
		t.Fatalf("fallback used request id %q", h.persistent.reqs[0].RequestID)
	}
}

func TestTransientSucceedsOnSecondAttempt(t *testing.T) {
	h := newHarness([]step{{err: refused()}}, nil)
	if _, err := h.messenger().Send(context.Background(), protocol.Request{Type: protocol.ToggleFeature}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := strings.Join(h.log, ","); got != "transient,sleep,transient" {
		t.Fatalf("unexpected call order %s", got)
	}
}

func TestNonTransientErrorSkipsRetryAndFallback(t *testing.T) {
	boom := errors.New("rpc: can't find service Background.Dispatch")
	h := newHarness([]step{{err: boom}}, nil)
	_, err := h.messenger().Send(context.Background(), protocol.Request{Type: protocol.UpdateSettings})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if got := strings.Join(h.log, ","); got != "transient" {
		t.Fatalf("unexpected call order %s", got)
	}
}

func TestFailedEnvelopeIsNotRetried(t *testing.T) {
	failure := protocol.Failure("", services.Wrap(services.ErrValidation, "router", "update", "no key provided", nil))
	h := newHarness([]step{{resp: failure}}, nil)
	_, err := h.messenger().Request(context.Background(), protocol.UpdateSettings, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(h.log) != 1 {
		t.Fatalf("expected one attempt, got %v", h.log)
	}
}

func TestFallbackFailureReportsBoth(t *testing.T) {
	h := newHarness([]step{{err: refused()}, {err: refused()}, {err: refused()}},
		[]step{{err: services.Wrap(services.ErrTransport, "port", "dial", "no daemon", syscall.ENOENT)}})
	_, err := h.messenger().Send(context.Background(), protocol.Request{Type: protocol.GetSettings})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 transient attempts") {
		t.Fatalf("expected attempt count in %q", err.Error())
	}
}

func TestPersistentTimeout(t *testing.T) {
	h := newHarness(nil, nil)
	h.persistent.block = true
	m := h.messenger(transport.WithTimeouts(20*time.Millisecond, 0))
	start := time.Now()
	_, err := m.Send(context.Background(), protocol.Request{Type: protocol.AnalyzeFrame})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout not enforced")
	}
}

func TestPersistentWakesOnceWhenDaemonMissing(t *testing.T) {
	h := newHarness(nil, []step{{err: syscall.ENOENT}})
	if _, err := h.messenger().Send(context.Background(), protocol.Request{Type: protocol.GenerateChecklist}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if h.wakes != 1 || len(h.persistent.reqs) != 2 {
		t.Fatalf("expected one wake and a second send, got wakes=%d sends=%d", h.wakes, len(h.persistent.reqs))
	}
}

func TestCallDecodesData(t *testing.T) {
	h := newHarness([]step{{resp: protocol.Success("", map[string]bool{"enabled": true})}}, nil)
	var out struct {
		Enabled bool `json:"enabled"`
	}
	if err := h.messenger().Call(context.Background(), protocol.ToggleFeature, map[string]any{"featureName": "x"}, &out); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !out.Enabled {
		t.Fatal("expected decoded data")
	}
}
