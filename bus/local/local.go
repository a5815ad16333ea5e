// Package local is an in-process loopback bus: every published message is
// delivered synchronously to all handlers registered in this process,
// including the publisher's own. It is the default for single-node
// deployments and lets tests wire several services to one bus to simulate
// multiple server processes.
package local

import (
	"context"
	"sync"

	"github.com/forumkit/membership/bus"
)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]bus.Handler
	closed   bool
}

var _ bus.Bus = (*Bus)(nil)

func New() *Bus {
	return &Bus{handlers: make(map[string][]bus.Handler)}
}

func (b *Bus) Publish(_ context.Context, topic string, msg bus.Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	hs := make([]bus.Handler, len(b.handlers[topic]))
	copy(hs, b.handlers[topic])
	b.mu.RUnlock()

	for _, h := range hs {
		h(msg)
	}
	return nil
}

func (b *Bus) Subscribe(topic string, h bus.Handler) {
	b.mu.Lock()
	if !b.closed {
		b.handlers[topic] = append(b.handlers[topic], h)
	}
	b.mu.Unlock()
}

func (b *Bus) Close(context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[string][]bus.Handler)
	b.mu.Unlock()
	return nil
}
