package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/attackmap/internal/domain/model"
)

func attack(id string, attacker, defender int) model.AttackEvent {
	return model.AttackEvent{
		EventID:  id,
		Attacker: model.Entity{ID: attacker},
		Defender: model.Entity{ID: defender},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, attack("e1", 1, 2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	event := <-q.Dequeue(ctx)
	if event.EventID != "e1" || event.Attacker.ID != 1 {
		t.Errorf("unexpected event %+v", event)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.TryEnqueue(ctx, attack(fmt.Sprint(i), 1, 2)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.TryEnqueue(ctx, attack("overflow", 1, 2)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewInMemoryQueue().TryEnqueue(cancelled, attack("x", 1, 2)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 100; i++ {
		if !q.Enqueue(ctx, attack(fmt.Sprintf("e%03d", i), 1, 2)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	i := 0
	for event := range q.Dequeue(ctx) {
		if want := fmt.Sprintf("e%03d", i); event.EventID != want {
			t.Fatalf("position %d: got %s want %s", i, event.EventID, want)
		}
		i++
	}
	if i != 100 {
		t.Errorf("expected 100 events drained after close, got %d", i)
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(50))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 10, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, attack(fmt.Sprintf("%d-%d", p, j), 1, 2)) {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}

	done := make(chan int)
	go func() {
		n := 0
		for range q.Dequeue(ctx) {
			n++
		}
		done <- n
	}()

	wg.Wait()
	_ = q.Close()

	select {
	case n := <-done:
		if n != producers*perProducer {
			t.Errorf("expected %d events, got %d", producers*perProducer, n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.TryEnqueue(ctx, attack("late", 1, 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected no events from a closed empty queue")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected dequeue channel to be closed within timeout")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
