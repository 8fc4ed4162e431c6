package scheduler

import "sync"

// notifier delivers callbacks on one goroutine in the order they were
// pushed. Once stopped it drops everything still queued.
type notifier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []func()
	delivering bool
	stopped    bool
	done       chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) push(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	n.queue = append(n.queue, fn)
	n.cond.Broadcast()
}

func (n *notifier) run() {
	defer close(n.done)

	n.mu.Lock()
	for {
		for len(n.queue) == 0 && !n.stopped {
			n.cond.Wait()
		}
		if n.stopped {
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.delivering = true
		n.mu.Unlock()

		fn()

		n.mu.Lock()
		n.delivering = false
		n.cond.Broadcast()
	}
}

// flush waits until everything pushed so far was delivered or dropped.
// It must not be called from a callback.
func (n *notifier) flush() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for !n.stopped && (len(n.queue) > 0 || n.delivering) {
		n.cond.Wait()
	}
}

// stop drops queued callbacks and waits for the goroutine to exit. It does
// not wait for a callback that is being delivered: that callback may be the
// caller, or may be blocked on it. Deliveries re-check the owner's state
// between steps instead, so the running one ends at its next check.
func (n *notifier) stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.queue = nil
	wait := !n.delivering
	n.cond.Broadcast()
	n.mu.Unlock()

	if wait {
		<-n.done
	}
}
