package pubsub_test

import (
	"sync"
	"testing"

	"vidmentor/internal/pubsub"
)

func TestPublishReachesSubscribersOfKind(t *testing.T) {
	bus := pubsub.New[string, int](nil)
	var got []int
	bus.Subscribe("a", func(v int) { got = append(got, v) })
	bus.Subscribe("a", func(v int) { got = append(got, v*10) })
	bus.Subscribe("b", func(int) { t.Fatal("wrong kind delivered") })

	if n := bus.Publish("a", 2); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 20 {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := pubsub.New[string, string](nil)
	calls := 0
	sub := bus.Subscribe("x", func(string) { calls++ })
	bus.Publish("x", "one")
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	sub.Unsubscribe()
	bus.Publish("x", "two")
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if bus.Len("x") != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.Len("x"))
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := pubsub.New[int, int](nil)
	reached := false
	bus.Subscribe(1, func(int) { panic("boom") })
	bus.Subscribe(1, func(int) { reached = true })
	bus.Publish(1, 0)
	if !reached {
		t.Fatal("second handler should still run")
	}
}

func TestHandlerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := pubsub.New[string, int](nil)
	var sub *pubsub.Subscription[string, int]
	calls := 0
	sub = bus.Subscribe("k", func(int) {
		calls++
		sub.Unsubscribe()
	})
	bus.Publish("k", 1)
	bus.Publish("k", 2)
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := pubsub.New[string, int](nil)
	var mu sync.Mutex
	total := 0
	bus.Subscribe("n", func(v int) {
		mu.Lock()
		total += v
		mu.Unlock()
	})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish("n", 1)
		}()
	}
	wg.Wait()
	if total != 50 {
		t.Fatalf("expected 50, got %d", total)
	}
}
