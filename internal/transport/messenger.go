package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vidmentor/internal/config"
	"vidmentor/internal/ipc"
	"vidmentor/internal/logging"
	"vidmentor/internal/port"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
)

const (
	defaultAttempts        = 3
	defaultBaseDelay       = 500 * time.Millisecond
	defaultPrimaryTimeout  = 45 * time.Second
	defaultFallbackTimeout = 15 * time.Second
)

// Sender delivers one request and returns the matching response.
type Sender interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// Waker brings the daemon up when it is not reachable.
type Waker interface {
	Wake(ctx context.Context) error
}

// WakerFunc adapts a function to Waker.
type WakerFunc func(ctx context.Context) error

// Wake calls f.
func (f WakerFunc) Wake(ctx context.Context) error { return f(ctx) }

// Option customizes a Messenger.
type Option func(*Messenger)

// WithRetry sets the transient attempt count and the delay unit between them.
func WithRetry(attempts int, base time.Duration) Option {
	return func(m *Messenger) {
		if attempts > 0 {
			m.attempts = attempts
		}
		if base >= 0 {
			m.baseDelay = base
		}
	}
}

// WithTimeouts sets the persistent primary and fallback deadlines.
func WithTimeouts(primary, fallback time.Duration) Option {
	return func(m *Messenger) {
		if primary > 0 {
			m.primaryTimeout = primary
		}
		if fallback > 0 {
			m.fallbackTimeout = fallback
		}
	}
}

// WithWaker installs a hook run before each retry.
func WithWaker(w Waker) Option {
	return func(m *Messenger) { m.waker = w }
}

// WithIDGenerator overrides request id assignment.
func WithIDGenerator(fn func() string) Option {
	return func(m *Messenger) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithSleeper overrides the pause between transient attempts.
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(m *Messenger) {
		if fn != nil {
			m.sleep = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Messenger) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Messenger sends requests to the daemon using the strategy their type calls
// for. It holds no per-call state and is safe for concurrent use.
type Messenger struct {
	transient  Sender
	persistent Sender
	waker      Waker

	attempts        int
	baseDelay       time.Duration
	primaryTimeout  time.Duration
	fallbackTimeout time.Duration
	newID           func() string
	sleep           func(context.Context, time.Duration) error
	logger          *slog.Logger
}

// New builds a Messenger over explicit transient and persistent senders.
func New(transient, persistent Sender, opts ...Option) *Messenger {
	m := &Messenger{
		transient:       transient,
		persistent:      persistent,
		attempts:        defaultAttempts,
		baseDelay:       defaultBaseDelay,
		primaryTimeout:  defaultPrimaryTimeout,
		fallbackTimeout: defaultFallbackTimeout,
		newID:           uuid.NewString,
		sleep:           sleepContext,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "transport")
	return m
}

// NewFromConfig wires the daemon's sockets and the configured retry policy.
// Origin identifies the calling context in change notifications.
func NewFromConfig(cfg *config.Config, origin string, logger *slog.Logger, opts ...Option) *Messenger {
	transient := ipc.Sender{
		SocketPath:  cfg.Paths.SocketPath,
		Origin:      origin,
		DialTimeout: cfg.DialTimeout(),
	}
	persistent := port.Client{
		SocketPath: cfg.Paths.PortSocketPath,
		Origin:     origin,
		Logger:     logger,
	}
	base := []Option{
		WithRetry(cfg.Transport.RetryAttempts, cfg.RetryBaseDelay()),
		WithTimeouts(cfg.PrimaryTimeout(), cfg.FallbackTimeout()),
		WithLogger(logger),
	}
	return New(transient, persistent, append(base, opts...)...)
}

// Send delivers req and returns the daemon's response envelope. A failed
// envelope is returned without error; err reports delivery problems only.
func (m *Messenger) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.RequestID == "" {
		req.RequestID = m.newID()
	}
	ctx = services.WithRequestID(ctx, req.RequestID)
	ctx = services.WithMessageType(ctx, string(req.Type))
	logger := logging.WithContext(ctx, m.logger)

	if protocol.StrategyFor(req.Type) == protocol.Persistent {
		return m.sendPersistent(ctx, logger, req, m.primaryTimeout)
	}
	return m.sendTransient(ctx, logger, req)
}

// Request sends a message of type t and converts a failed envelope into a
// classified error.
func (m *Messenger) Request(ctx context.Context, t protocol.MessageType, data map[string]any) (protocol.Response, error) {
	resp, err := m.Send(ctx, protocol.Request{Type: t, Data: data})
	if err != nil {
		return resp, err
	}
	return resp, resp.Err()
}

// Call sends a message and decodes the response data into target.
func (m *Messenger) Call(ctx context.Context, t protocol.MessageType, data map[string]any, target any) error {
	resp, err := m.Request(ctx, t, data)
	if err != nil {
		return err
	}
	return resp.Decode(target)
}

func (m *Messenger) sendTransient(ctx context.Context, logger *slog.Logger, req protocol.Request) (protocol.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if attempt > 1 {
			m.wake(ctx, logger)
			if err := m.sleep(ctx, m.baseDelay*time.Duration(attempt-1)); err != nil {
				return protocol.Response{}, err
			}
		}
		resp, err := m.attempt(ctx, m.transient, req, m.primaryTimeout)
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) {
			return protocol.Response{}, err
		}
		lastErr = err
		logger.Debug("transient send failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", m.attempts),
			logging.Error(err))
	}

	m.wake(ctx, logger)
	logging.WarnWithContext(logger, "transient delivery exhausted; falling back to persistent channel", "transport_fallback",
		logging.Int("attempts", m.attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldImpact, "request is retried once over a persistent channel"),
		logging.String(logging.FieldErrorHint, "check that the daemon is running"))
	resp, err := m.attempt(ctx, m.persistent, req, m.fallbackTimeout)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w (after %d transient attempts: %v)", err, m.attempts, lastErr)
	}
	return resp, nil
}

func (m *Messenger) sendPersistent(ctx context.Context, logger *slog.Logger, req protocol.Request, timeout time.Duration) (protocol.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := m.persistent.Send(callCtx, req)
	if err == nil || m.waker == nil || !IsTransient(err) {
		return resp, m.timeoutErr(req, err)
	}
	logger.Debug("persistent channel unavailable; waking daemon", logging.Error(err))
	m.wake(callCtx, logger)
	resp, err = m.persistent.Send(callCtx, req)
	return resp, m.timeoutErr(req, err)
}

func (m *Messenger) attempt(ctx context.Context, sender Sender, req protocol.Request, timeout time.Duration) (protocol.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := sender.Send(callCtx, req)
	return resp, m.timeoutErr(req, err)
}

// timeoutErr marks a bare deadline expiry so callers see a timeout rather
// than a context error.
func (m *Messenger) timeoutErr(req protocol.Request, err error) error {
	if err == nil || !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return err
	}
	return services.Wrap(services.ErrTimeout, "transport", "send",
		fmt.Sprintf("no response to %s (%s)", req.Type, req.RequestID), err)
}

func (m *Messenger) wake(ctx context.Context, logger *slog.Logger) {
	if m.waker == nil {
		return
	}
	if err := m.waker.Wake(ctx); err != nil {
		logger.Debug("wake failed", logging.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
