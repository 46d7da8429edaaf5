package intent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/model"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	in := []Intent{
		PositionChanged{NodeID: "a", Position: model.Point{X: 3, Y: 4}},
		EdgeCreated{Source: "a", Target: "b", SourceHandle: model.HandleRight, TargetHandle: model.HandleLeft},
		NavigateBack{},
		AlignmentApplied{Alignment: geometry.AlignTop, Changes: []geometry.Placement{{NodeID: "a"}}},
	}

	for _, i := range in {
		data, err := Marshal(i)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", i.Kind(), err)
		}
		out, err := Unmarshal(data)
		if err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", i.Kind(), err)
		}
		if out.Kind() != i.Kind() {
			t.Errorf("Expected kind %s, got %s", i.Kind(), out.Kind())
		}
	}

	if _, err := Unmarshal([]byte(`{"type":"teleport","intent":{}}`)); err == nil {
		t.Error("Expected error for unknown intent type")
	}
}

func TestBusDelivers(t *testing.T) {
	var mu sync.Mutex
	var got []Intent
	done := make(chan struct{})

	bus := NewBus(HandlerFunc(func(ctx context.Context, i Intent) error {
		mu.Lock()
		got = append(got, i)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	}), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	bus.Publish(NodeTapped{NodeID: "a"})
	bus.Publish(NodeTapped{NodeID: "b"})
	bus.Publish(NodeDeleted{NodeID: "c"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].(NodeTapped).NodeID != "a" || got[2].Kind() != KindNodeDeleted {
		t.Errorf("Intents delivered out of order: %+v", got)
	}
	if bus.Delivered() != 3 {
		t.Errorf("Expected 3 delivered, got %d", bus.Delivered())
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	bus := NewBus(HandlerFunc(func(ctx context.Context, i Intent) error {
		<-release
		return nil
	}), 2)

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)

	start := time.Now()
	accepted := 0
	for i := 0; i < 50; i++ {
		if bus.Publish(NodeTapped{NodeID: "x"}) {
			accepted++
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Publish blocked on a slow handler")
	}
	if bus.Dropped() == 0 {
		t.Error("Expected some intents to be dropped")
	}
	if int64(accepted)+bus.Dropped() != 50 {
		t.Errorf("Accepted %d + dropped %d != 50", accepted, bus.Dropped())
	}

	close(release)
	cancel()
	bus.Wait()
}

func TestBusRecoversFromHandlerPanic(t *testing.T) {
	var failures atomic.Int32
	var calls atomic.Int32
	done := make(chan struct{})

	bus := NewBus(HandlerFunc(func(ctx context.Context, i Intent) error {
		n := calls.Add(1)
		switch n {
		case 1:
			panic("boom")
		case 2:
			return errors.New("disk full")
		}
		close(done)
		return nil
	}), 8)
	bus.SetErrorHandler(func(i Intent, err error) {
		failures.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	for i := 0; i < 3; i++ {
		bus.Publish(NodeOpened{NodeID: "n"})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Bus stopped after a handler panic")
	}
	if failures.Load() != 2 {
		t.Errorf("Expected 2 reported failures, got %d", failures.Load())
	}
}

func TestBusDrainsOnShutdown(t *testing.T) {
	var count atomic.Int32
	bus := NewBus(HandlerFunc(func(ctx context.Context, i Intent) error {
		count.Add(1)
		return nil
	}), 16)

	for i := 0; i < 5; i++ {
		bus.Publish(NodeTapped{NodeID: "x"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Start(ctx)
	bus.Wait()

	if count.Load() != 5 {
		t.Errorf("Expected queued intents to be delivered on shutdown, got %d", count.Load())
	}
	if bus.IsRunning() {
		t.Error("Bus should not be running after Wait")
	}
}
