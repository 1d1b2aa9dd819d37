package behavior

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidmentor/internal/logging"
	"vidmentor/internal/pubsub"
)

// DefaultTickInterval is how often a started monitor evaluates the sample.
const DefaultTickInterval = 10 * time.Second

// EventKind names a monitor event.
type EventKind string

const (
	EventRewind            EventKind = "rewind"
	EventPause             EventKind = "pause"
	EventPlay              EventKind = "play"
	EventRateChange        EventKind = "rate-change"
	EventConfusionDetected EventKind = "confusion-detected"
)

// Event is published for every observed playback signal and every trip.
type Event struct {
	Kind     EventKind `json:"kind"`
	Position float64   `json:"position"`
	// Sample is a snapshot taken when the event fired. For confusion events it
	// holds the counts before the reset and the full segment map.
	Sample Sample    `json:"sample"`
	At     time.Time `json:"at"`
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithTickInterval overrides the evaluation interval.
func WithTickInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor tracks one playback session.
type Monitor struct {
	mu       sync.Mutex
	sample   Sample
	interval time.Duration
	now      func() time.Time
	bus      *pubsub.Bus[EventKind, Event]
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor constructs an idle monitor.
func NewMonitor(logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		sample:   Sample{SegmentWatchTimes: make(map[int]int)},
		interval: DefaultTickInterval,
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "behavior"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.bus = pubsub.New[EventKind, Event](m.logger)
	return m
}

// Subscribe registers handler for events of kind.
func (m *Monitor) Subscribe(kind EventKind, handler func(Event)) *pubsub.Subscription[EventKind, Event] {
	return m.bus.Subscribe(kind, handler)
}

// Unsubscribe removes a subscription returned by Subscribe.
func (m *Monitor) Unsubscribe(sub *pubsub.Subscription[EventKind, Event]) {
	m.bus.Unsubscribe(sub)
}

// Start begins periodic evaluation. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)
	m.logger.Debug("monitoring started", logging.Duration("interval", m.interval))
}

// Stop cancels periodic evaluation and waits for the loop to exit. Stopping
// an idle monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Debug("monitoring stopped")
}

// Running reports whether periodic evaluation is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// UpdatePosition records a playback position in seconds.
func (m *Monitor) UpdatePosition(position float64) {
	m.mu.Lock()
	rewound := position < m.sample.LastPosition-RewindThreshold
	if rewound {
		m.sample.RewindCount++
	}
	m.sample.SegmentWatchTimes[SegmentStart(position)]++
	m.sample.LastPosition = position
	snap := m.sample.Clone()
	m.mu.Unlock()

	if rewound {
		m.publish(EventRewind, position, snap)
	}
}

// Pause records a pause.
func (m *Monitor) Pause() {
	m.mu.Lock()
	m.sample.PauseCount++
	snap := m.sample.Clone()
	m.mu.Unlock()
	m.publish(EventPause, snap.LastPosition, snap)
}

// Play records playback resuming. Counters are unchanged.
func (m *Monitor) Play() {
	m.mu.Lock()
	snap := m.sample.Clone()
	m.mu.Unlock()
	m.publish(EventPlay, snap.LastPosition, snap)
}

// RateChange records a playback speed change.
func (m *Monitor) RateChange() {
	m.mu.Lock()
	m.sample.PlaybackSpeedChanges++
	snap := m.sample.Clone()
	m.mu.Unlock()
	m.publish(EventRateChange, snap.LastPosition, snap)
}

// Check evaluates the trip condition once. When tripped it publishes
// confusion-detected and resets rewind, pause, and speed counters.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	if !m.sample.Tripped() {
		m.mu.Unlock()
		return false
	}
	snap := m.sample.Clone()
	m.sample.RewindCount = 0
	m.sample.PauseCount = 0
	m.sample.PlaybackSpeedChanges = 0
	m.mu.Unlock()

	m.logger.Info("confusion detected",
		logging.String(logging.FieldEventType, "confusion_detected"),
		logging.Int("rewinds", snap.RewindCount),
		logging.Int("pauses", snap.PauseCount),
		logging.Float64("position", snap.LastPosition),
	)
	m.publish(EventConfusionDetected, snap.LastPosition, snap)
	return true
}

// Snapshot returns a copy of the current sample.
func (m *Monitor) Snapshot() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sample.Clone()
}

func (m *Monitor) publish(kind EventKind, position float64, snap Sample) {
	m.bus.Publish(kind, Event{Kind: kind, Position: position, Sample: snap, At: m.now()})
}
