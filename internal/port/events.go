package port

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"vidmentor/internal/logging"
	"vidmentor/internal/settings"
)

var errStreamClosed = errors.New("daemon closed the change stream")

const (
	defaultFollowMinDelay = 250 * time.Millisecond
	defaultFollowMaxDelay = 5 * time.Second
)

// WatchChanges streams settings changes to handler until ctx ends or the
// daemon closes the stream.
func WatchChanges(ctx context.Context, socketPath, origin string, logger *slog.Logger, handler func(settings.Change)) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	err := watch(ctx, socketPath, origin, logger, nil, handler)
	if errors.Is(err, errStreamClosed) {
		return nil
	}
	return err
}

// ChangeFollower keeps a settings change stream open across daemon starts and
// restarts. Changes published while it is disconnected are not replayed, so
// OnConnect runs after every successful dial for callers to resync.
type ChangeFollower struct {
	SocketPath string
	Origin     string
	Logger     *slog.Logger

	// Wake runs before each dial attempt. It is optional.
	Wake func(ctx context.Context) error

	// OnConnect runs once per established stream, before any change from it.
	OnConnect func()

	MinDelay time.Duration
	MaxDelay time.Duration
}

// Run delivers changes to handler until ctx ends. It returns ctx.Err().
func (f ChangeFollower) Run(ctx context.Context, handler func(settings.Change)) error {
	logger := f.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "settings-follow")
	minDelay, maxDelay := f.MinDelay, f.MaxDelay
	if minDelay <= 0 {
		minDelay = defaultFollowMinDelay
	}
	if maxDelay < minDelay {
		maxDelay = max(defaultFollowMaxDelay, minDelay)
	}

	delay := minDelay
	for ctx.Err() == nil {
		if f.Wake != nil {
			if err := f.Wake(ctx); err != nil {
				logger.Debug("wake before change stream failed", logging.Error(err))
			}
		}
		connected := false
		err := watch(ctx, f.SocketPath, f.Origin, logger, func() {
			connected = true
			if f.OnConnect != nil {
				f.OnConnect()
			}
		}, handler)
		if ctx.Err() != nil {
			break
		}
		if connected {
			delay = minDelay
		}
		logger.Debug("change stream unavailable; retrying",
			logging.Duration("delay", delay),
			logging.Error(err))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		delay = min(delay*2, maxDelay)
	}
	return ctx.Err()
}

func watch(ctx context.Context, socketPath, origin string, logger *slog.Logger, onOpen func(), handler func(settings.Change)) error {
	raw, _, err := dialer(socketPath).DialContext(ctx, endpoint(EventsPath, origin), nil)
	if err != nil {
		return err
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()
	if onOpen != nil {
		onOpen()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.closeNormal()
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isNormalClose(err) {
				return errStreamClosed
			}
			return err
		}
		var change settings.Change
		if err := json.Unmarshal(payload, &change); err != nil {
			logger.Debug("dropping undecodable change", logging.Error(err))
			continue
		}
		handler(change)
	}
}
