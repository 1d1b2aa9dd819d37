package behavior_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"vidmentor/internal/behavior"
)

func TestRewindCountsAndSegments(t *testing.T) {
	m := behavior.NewMonitor(nil)
	var rewinds int
	m.Subscribe(behavior.EventRewind, func(behavior.Event) { rewinds++ })

	m.UpdatePosition(30)
	m.UpdatePosition(27) // within threshold
	m.UpdatePosition(12) // rewind
	m.UpdatePosition(15)

	s := m.Snapshot()
	if s.RewindCount != 1 || rewinds != 1 {
		t.Fatalf("expected one rewind, got count=%d events=%d", s.RewindCount, rewinds)
	}
	if s.SegmentWatchTimes[30] != 1 || s.SegmentWatchTimes[20] != 1 || s.SegmentWatchTimes[10] != 2 {
		t.Fatalf("unexpected segments: %v", s.SegmentWatchTimes)
	}
	if s.LastPosition != 15 {
		t.Fatalf("unexpected last position: %v", s.LastPosition)
	}
}

func TestTripResetsCountersButKeepsSegments(t *testing.T) {
	m := behavior.NewMonitor(nil)
	var tripped []behavior.Event
	m.Subscribe(behavior.EventConfusionDetected, func(ev behavior.Event) { tripped = append(tripped, ev) })

	m.UpdatePosition(100)
	for i := 0; i < 3; i++ {
		m.UpdatePosition(80)
		m.UpdatePosition(100)
	}
	m.Pause()
	m.RateChange()

	before := m.Snapshot()
	if before.RewindCount != 3 {
		t.Fatalf("expected 3 rewinds, got %d", before.RewindCount)
	}
	if !m.Check() {
		t.Fatal("expected trip")
	}
	if len(tripped) != 1 {
		t.Fatalf("expected one confusion event, got %d", len(tripped))
	}
	ev := tripped[0]
	if ev.Sample.RewindCount != 3 || ev.Sample.PauseCount != 1 || ev.Position != 100 {
		t.Fatalf("unexpected event payload: %+v", ev)
	}

	after := m.Snapshot()
	if after.RewindCount != 0 || after.PauseCount != 0 || after.PlaybackSpeedChanges != 0 {
		t.Fatalf("counters not reset: %+v", after)
	}
	if len(after.SegmentWatchTimes) != len(before.SegmentWatchTimes) {
		t.Fatalf("segments changed: before=%v after=%v", before.SegmentWatchTimes, after.SegmentWatchTimes)
	}
	for k, v := range before.SegmentWatchTimes {
		if after.SegmentWatchTimes[k] != v {
			t.Fatalf("segment %d changed: %d -> %d", k, v, after.SegmentWatchTimes[k])
		}
	}
	if m.Check() {
		t.Fatal("expected no trip after reset")
	}
}

func TestPauseThreshold(t *testing.T) {
	m := behavior.NewMonitor(nil)
	for i := 0; i < 4; i++ {
		m.Pause()
	}
	if m.Check() {
		t.Fatal("four pauses should not trip")
	}
	m.Pause()
	if !m.Check() {
		t.Fatal("five pauses should trip")
	}
}

func TestSpeedChangesDoNotTrip(t *testing.T) {
	m := behavior.NewMonitor(nil)
	for i := 0; i < 20; i++ {
		m.RateChange()
	}
	if m.Check() {
		t.Fatal("speed changes alone should not trip")
	}
	if m.Snapshot().PlaybackSpeedChanges != 20 {
		t.Fatal("speed changes should still be counted")
	}
}

func TestPlayLeavesCounters(t *testing.T) {
	m := behavior.NewMonitor(nil)
	played := 0
	m.Subscribe(behavior.EventPlay, func(behavior.Event) { played++ })
	m.Play()
	s := m.Snapshot()
	if played != 1 || s.PauseCount != 0 || s.RewindCount != 0 {
		t.Fatalf("unexpected state after play: played=%d sample=%+v", played, s)
	}
}

func TestStartStopIdempotentAndTicks(t *testing.T) {
	m := behavior.NewMonitor(nil, behavior.WithTickInterval(10*time.Millisecond))
	var mu sync.Mutex
	trips := 0
	fired := make(chan struct{}, 1)
	m.Subscribe(behavior.EventConfusionDetected, func(behavior.Event) {
		mu.Lock()
		trips++
		mu.Unlock()
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	m.Stop()
	m.Start(context.Background())
	m.Start(context.Background())
	if !m.Running() {
		t.Fatal("expected running")
	}
	for i := 0; i < 5; i++ {
		m.Pause()
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never evaluated the trip")
	}
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("expected stopped")
	}

	for i := 0; i < 5; i++ {
		m.Pause()
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if trips != 1 {
		t.Fatalf("stopped monitor should not tick, trips=%d", trips)
	}
}

func TestUnsubscribe(t *testing.T) {
	m := behavior.NewMonitor(nil)
	calls := 0
	sub := m.Subscribe(behavior.EventPause, func(behavior.Event) { calls++ })
	m.Pause()
	m.Unsubscribe(sub)
	m.Pause()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestApplyPlaybackEvents(t *testing.T) {
	m := behavior.NewMonitor(nil)
	events := []behavior.PlaybackEvent{
		{Event: "timeupdate", Position: 50},
		{Event: "seeked", Position: 20},
		{Event: "pause"},
		{Event: "play"},
		{Event: "ratechange"},
	}
	for _, ev := range events {
		if err := m.Apply(ev); err != nil {
			t.Fatalf("Apply(%v): %v", ev, err)
		}
	}
	s := m.Snapshot()
	if s.RewindCount != 1 || s.PauseCount != 1 || s.PlaybackSpeedChanges != 1 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if err := m.Apply(behavior.PlaybackEvent{Event: "volumechange"}); err == nil {
		t.Fatal("expected error for unsupported event")
	}
}

func TestSegmentStart(t *testing.T) {
	cases := map[float64]int{0: 0, 9.99: 0, 10: 10, 25.5: 20, -3: 0}
	for in, want := range cases {
		if got := behavior.SegmentStart(in); got != want {
			t.Fatalf("SegmentStart(%v)=%d want %d", in, got, want)
		}
	}
}
