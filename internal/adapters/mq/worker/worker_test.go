package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/attackmap/internal/adapters/mq/worker"
	model "github.com/okian/attackmap/internal/domain/model"
	logging "github.com/okian/attackmap/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

type mockQueue struct {
	eventChan chan worker.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan worker.Event, 10)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan worker.Event {
	return mq.eventChan
}

func (mq *mockQueue) add(attacker, defender int) {
	mq.eventChan <- model.AttackEvent{
		Attacker: model.Entity{ID: attacker},
		Defender: model.Entity{ID: defender},
	}
}

type recordingSink struct {
	mu       sync.Mutex
	accepted []string
	failOn   int
}

func (s *recordingSink) Accept(_ context.Context, event worker.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Attacker.ID == s.failOn {
		return errors.New("sink rejected")
	}
	s.accepted = append(s.accepted, fmt.Sprintf("%d>%d", event.Attacker.ID, event.Defender.ID))
	return nil
}

func (s *recordingSink) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.accepted...)
}

func TestInMemoryWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a worker over a queue", t, func() {
		_ = logging.Init()

		queue := newMockQueue()
		sink := &recordingSink{failOn: 99}
		w := worker.NewInMemoryWorker(queue, sink, worker.WithName("ingest"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		convey.Convey("When attacks arrive", func() {
			queue.add(1, 2)
			queue.add(99, 2)
			queue.add(2, 3)
			queue.add(3, 1)

			convey.Convey("Then the sink sees them in arrival order and failures are skipped", func() {
				convey.So(func() []string {
					deadline := time.Now().Add(time.Second)
					for len(sink.seen()) < 3 && time.Now().Before(deadline) {
						time.Sleep(5 * time.Millisecond)
					}
					return sink.seen()
				}(), convey.ShouldResemble, []string{"1>2", "2>3", "3>1"})
			})
		})

		convey.Convey("When shutting down twice", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			first := w.Shutdown(shutdownCtx)
			second := w.Shutdown(shutdownCtx)

			convey.Convey("Then both calls succeed and Run has returned", func() {
				convey.So(first, convey.ShouldBeNil)
				convey.So(second, convey.ShouldBeNil)
				_, open := <-w.Done()
				convey.So(open, convey.ShouldBeFalse)
			})
		})

		convey.Reset(func() {
			cancel()
			<-w.Done()
		})
	})
}

func TestWorkerStopsOnClosedQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a worker whose queue closes", t, func() {
		queue := newMockQueue()
		w := worker.NewInMemoryWorker(queue, worker.SinkFunc(func(context.Context, worker.Event) error { return nil }),
			worker.WithLogger(logging.Nop()))

		go w.Run(context.Background())
		close(queue.eventChan)

		convey.Convey("Then Run returns", func() {
			select {
			case <-w.Done():
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
		})
	})
}

func TestWorkerShutdownTimeout(t *testing.T) {
	convey.Convey("Given a worker that was never started", t, func() {
		w := worker.NewInMemoryWorker(newMockQueue(), &recordingSink{}, worker.WithLogger(logging.Nop()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		convey.Convey("Then Shutdown reports the timeout", func() {
			err := w.Shutdown(ctx)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}
