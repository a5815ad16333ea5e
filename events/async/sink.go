// Package asyncsink decouples event delivery from the mutation hot path: a
// bounded queue feeds worker goroutines that call the wrapped sink, and
// events are dropped when the queue is full rather than blocking a join or
// leave.
package asyncsink

import (
	"sync"

	"github.com/forumkit/membership"
)

type Sink struct {
	inner membership.EventSink
	q     chan membership.Event
	wg    sync.WaitGroup
	once  sync.Once
}

var _ membership.EventSink = (*Sink)(nil)

func New(inner membership.EventSink, workers, qlen int) *Sink {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	s := &Sink{inner: inner, q: make(chan membership.Event, qlen)}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.wg.Done()
			for e := range s.q {
				s.inner.Emit(e)
			}
		}()
	}
	return s
}

func (s *Sink) Emit(e membership.Event) {
	select {
	case s.q <- e:
	default: // drop
	}
}

// Close drains the queue and stops the workers.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.q)
		s.wg.Wait()
	})
}
