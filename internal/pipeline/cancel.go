package pipeline

import "sync"

// Signal is a set-once cancellation flag shared by every queue in a run.
// The first Trigger wins; later calls are no-ops.
type Signal struct {
	once sync.Once
	done chan struct{}

	mu     sync.Mutex
	reason string
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Trigger requests cancellation. Safe to call from any goroutine, any
// number of times.
func (s *Signal) Trigger(reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
	})
}

// Triggered reports whether cancellation has been requested.
func (s *Signal) Triggered() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Reason returns the reason recorded by the first Trigger call.
func (s *Signal) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done returns a channel closed when cancellation is requested. Used to
// interrupt blocking enqueues and retry backoff sleeps.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
