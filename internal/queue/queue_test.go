package queue

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/netsentry/pkg/models"
)

func event(code int) models.Event {
	return models.Event{EventCode: code, SourceType: models.SourceNetworkDevice}
}

func TestFIFOOrder(t *testing.T) {
	q := New(10)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := q.Enqueue(ctx, event(i)); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	if q.Depth() != 5 {
		t.Errorf("Depth() = %d, want 5", q.Depth())
	}

	for i := 1; i <= 5; i++ {
		ev, ok := q.TryDequeue()
		if !ok {
			t.Fatalf("TryDequeue() empty at %d", i)
		}
		if ev.EventCode != i {
			t.Errorf("dequeued code %d, want %d", ev.EventCode, i)
		}
	}
	if _, ok := q.TryDequeue(); ok {
		t.Error("TryDequeue() on empty queue = true, want false")
	}
}

func TestBackpressure(t *testing.T) {
	q := New(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, event(1)); err != nil {
		t.Fatalf("Enqueue error = %v", err)
	}

	// Second enqueue must block until the consumer makes room.
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Enqueue(ctx, event(2))
	}()

	select {
	case err := <-unblocked:
		t.Fatalf("Enqueue on full queue returned early (err = %v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	ev, ok := q.TryDequeue()
	if !ok || ev.EventCode != 1 {
		t.Fatalf("TryDequeue() = (%v, %v), want event 1", ev.EventCode, ok)
	}

	select {
	case err := <-unblocked:
		if err != nil {
			t.Fatalf("blocked Enqueue error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue still blocked after room was made")
	}

	if ev, ok := q.TryDequeue(); !ok || ev.EventCode != 2 {
		t.Errorf("TryDequeue() = (%v, %v), want event 2", ev.EventCode, ok)
	}
}

func TestEnqueueCancelled(t *testing.T) {
	q := New(1)
	q.Enqueue(context.Background(), event(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, event(2)); err != context.Canceled {
		t.Errorf("Enqueue on full queue with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestDequeueTimeout(t *testing.T) {
	q := New(4)

	start := time.Now()
	_, ok := q.Dequeue(context.Background(), 30*time.Millisecond)
	if ok {
		t.Error("Dequeue() on empty queue = true, want timeout")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Dequeue returned after %v, want ~30ms wait", elapsed)
	}

	q.Enqueue(context.Background(), event(7))
	ev, ok := q.Dequeue(context.Background(), time.Second)
	if !ok || ev.EventCode != 7 {
		t.Errorf("Dequeue() = (%v, %v), want event 7", ev.EventCode, ok)
	}
}

func TestClose(t *testing.T) {
	q := New(4)
	ctx := context.Background()

	q.Enqueue(ctx, event(1))
	q.Close()
	q.Close() // idempotent

	if err := q.Enqueue(ctx, event(2)); err != ErrClosed {
		t.Errorf("Enqueue after Close = %v, want ErrClosed", err)
	}

	// Buffered events survive Close.
	if ev, ok := q.TryDequeue(); !ok || ev.EventCode != 1 {
		t.Errorf("TryDequeue after Close = (%v, %v), want event 1", ev.EventCode, ok)
	}
}
