package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidmentor/internal/config"
	"vidmentor/internal/logging"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
	"vidmentor/internal/settings"
)

// Dispatcher routes one request envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, req protocol.Request) protocol.Response
}

// Daemon owns the background process lifecycle.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *settings.Store
	dispatcher Dispatcher

	lockPath string
	lock     *flock.Flock

	idleLimit time.Duration
	idleCheck time.Duration
	now       func() time.Time
	activity  *activity

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	shutdownOnce   sync.Once
	shutdown       chan struct{}
	shutdownReason atomic.Value
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	SettingsPath   string
	LockPath       string
	SocketPath     string
	PortSocketPath string
	OpenChannels   int
	InFlight       int
	Dispatched     uint64
	IdleFor        time.Duration
	IdleSuspend    time.Duration
}

// Option customizes a daemon.
type Option func(*Daemon)

// WithIdleSuspend overrides runtime.idle_suspend_seconds. Zero disables
// suspension.
func WithIdleSuspend(limit time.Duration) Option {
	return func(d *Daemon) {
		d.idleLimit = limit
	}
}

// WithIdleCheckInterval overrides how often idleness is evaluated.
func WithIdleCheckInterval(interval time.Duration) Option {
	return func(d *Daemon) {
		if interval > 0 {
			d.idleCheck = interval
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *settings.Store, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || dispatcher == nil {
		return nil, errors.New("daemon requires config, settings store, and dispatcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		dispatcher: dispatcher,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		idleLimit:  cfg.IdleSuspend(),
		now:        time.Now,
		shutdown:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.idleCheck <= 0 {
		d.idleCheck = defaultIdleCheck(d.idleLimit)
	}
	d.activity = newActivity(d.now)
	return d, nil
}

func defaultIdleCheck(limit time.Duration) time.Duration {
	check := limit / 4
	switch {
	case check <= 0:
		return time.Second
	case check > 5*time.Second:
		return 5 * time.Second
	case check < 10*time.Millisecond:
		return 10 * time.Millisecond
	}
	return check
}

// Start acquires the instance lock and begins idle supervision.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidmentor daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startedAt = d.now()
	d.running.Store(true)

	if d.idleLimit > 0 {
		d.wg.Add(1)
		go d.superviseIdle(runCtx)
	}

	d.logger.Info("vidmentor daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Duration("idle_suspend", d.idleLimit),
	)
	return nil
}

// Stop ends idle supervision and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("vidmentor daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Store exposes the settings store for change streaming.
func (d *Daemon) Store() *settings.Store {
	return d.store
}

// Dispatch routes a request on behalf of origin and records the activity.
func (d *Daemon) Dispatch(ctx context.Context, req protocol.Request, origin string) protocol.Response {
	d.activity.begin()
	defer d.activity.end()
	ctx = services.WithOrigin(ctx, origin)
	return d.dispatcher.Dispatch(ctx, req)
}

// HoldChannel marks a persistent channel as open. The returned func releases
// it and must be called exactly once.
func (d *Daemon) HoldChannel() func() {
	d.activity.open()
	var once sync.Once
	return func() {
		once.Do(d.activity.close)
	}
}

// RequestShutdown asks the process to exit. Only the first reason is kept.
func (d *Daemon) RequestShutdown(reason string) {
	d.shutdownOnce.Do(func() {
		d.shutdownReason.Store(reason)
		d.logger.Info("daemon shutdown requested",
			logging.String(logging.FieldEventType, "daemon_shutdown_requested"),
			logging.String("reason", reason),
		)
		close(d.shutdown)
	})
}

// Done is closed once shutdown has been requested.
func (d *Daemon) Done() <-chan struct{} {
	return d.shutdown
}

// ShutdownReason returns the reason passed to RequestShutdown.
func (d *Daemon) ShutdownReason() string {
	reason, _ := d.shutdownReason.Load().(string)
	return reason
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	snap := d.activity.snapshot()
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		SettingsPath:   d.store.Path(),
		LockPath:       d.lockPath,
		SocketPath:     d.cfg.Paths.SocketPath,
		PortSocketPath: d.cfg.Paths.PortSocketPath,
		OpenChannels:   snap.Channels,
		InFlight:       snap.InFlight,
		Dispatched:     snap.Dispatched,
		IdleFor:        snap.IdleFor,
		IdleSuspend:    d.idleLimit,
	}
}

func (d *Daemon) superviseIdle(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.idleCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case <-ticker.C:
			snap := d.activity.snapshot()
			if snap.Channels > 0 || snap.InFlight > 0 || snap.IdleFor < d.idleLimit {
				continue
			}
			d.logger.Info("idle window elapsed; suspending",
				logging.String(logging.FieldEventType, "daemon_idle_suspend"),
				logging.Duration("idle_for", snap.IdleFor),
				logging.Int64("dispatched", int64(snap.Dispatched)),
			)
			d.RequestShutdown("idle")
			return
		}
	}
}
