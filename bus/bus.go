// Package bus defines the publish/subscribe channel that broadcasts cache
// invalidations to every server process sharing one membership store.
//
// Delivery is at-least-once and unordered relative to direct store writes;
// subscribers must treat every message as idempotent. Messages are delivered
// to the publishing process too, so mutation code never special-cases "am I
// the publisher". A lost message is tolerable: the cache TTL bounds how long
// a stale entry can survive.
package bus

import "context"

// Topics used by the membership subsystem.
const (
	// TopicClear carries one (uid, group) pair to drop from every cache.
	TopicClear = "group:cache:del"
	// TopicReset tells every process to clear its cache wholesale. The
	// message payload is ignored; a zero Message is published.
	TopicReset = "group:cache:reset"
)

// Message identifies a single cache entry.
type Message struct {
	UID   int64  `json:"uid" msgpack:"uid"`
	Group string `json:"groupName" msgpack:"groupName"`
}

// Handler consumes one delivered message. Handlers must be cheap; slow work
// belongs on the handler's own goroutine.
type Handler func(Message)

type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error

	// Subscribe registers a handler for a topic. Subscriptions are made at
	// process startup and live until Close.
	Subscribe(topic string, h Handler)

	// Close stops delivery and releases resources.
	Close(ctx context.Context) error
}
