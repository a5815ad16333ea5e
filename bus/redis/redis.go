// Package redis implements the invalidation bus on Redis pub/sub. Every
// process attached to the same Redis and channel prefix receives every
// message, the publisher included, which is exactly the delivery contract
// the membership cache wants.
package redis

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/forumkit/membership/bus"
	"github.com/forumkit/membership/codec"
)

var ErrNilClient = errors.New("redis bus: nil client")

type Bus struct {
	rdb         goredis.UniversalClient
	codec       codec.Codec[bus.Message]
	prefix      string
	closeClient bool

	mu       sync.RWMutex
	handlers map[string][]bus.Handler
	subs     map[string]*goredis.PubSub
	closed   bool

	wg sync.WaitGroup
}

var _ bus.Bus = (*Bus)(nil)

type Config struct {
	Client goredis.UniversalClient
	// Codec frames Message payloads; nil => msgpack.
	Codec codec.Codec[bus.Message]
	// ChannelPrefix namespaces topics when one Redis serves several
	// deployments. May be empty.
	ChannelPrefix string
	CloseClient   bool // set true only if this bus exclusively owns the client
}

func New(cfg Config) (*Bus, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Msgpack[bus.Message]{}
	}
	return &Bus{
		rdb:         cfg.Client,
		codec:       c,
		prefix:      cfg.ChannelPrefix,
		closeClient: cfg.CloseClient,
		handlers:    make(map[string][]bus.Handler),
		subs:        make(map[string]*goredis.PubSub),
	}, nil
}

func (b *Bus) channel(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + ":" + topic
}

func (b *Bus) Publish(ctx context.Context, topic string, msg bus.Message) error {
	payload, err := b.codec.Encode(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel(topic), payload).Err()
}

func (b *Bus) Subscribe(topic string, h bus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.handlers[topic] = append(b.handlers[topic], h)
	if _, ok := b.subs[topic]; ok {
		return
	}
	ps := b.rdb.Subscribe(context.Background(), b.channel(topic))
	b.subs[topic] = ps
	b.wg.Add(1)
	go b.receive(topic, ps)
}

func (b *Bus) receive(topic string, ps *goredis.PubSub) {
	defer b.wg.Done()
	for m := range ps.Channel() {
		msg, err := b.codec.Decode([]byte(m.Payload))
		if err != nil {
			// foreign or corrupt payload; drop it
			continue
		}
		b.mu.RLock()
		hs := make([]bus.Handler, len(b.handlers[topic]))
		copy(hs, b.handlers[topic])
		b.mu.RUnlock()
		for _, h := range hs {
			h(msg)
		}
	}
}

func (b *Bus) Close(context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	var first error
	for _, ps := range subs {
		if err := ps.Close(); err != nil && first == nil {
			first = err
		}
	}
	b.wg.Wait()

	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) && first == nil {
			first = err
		}
	}
	return first
}
