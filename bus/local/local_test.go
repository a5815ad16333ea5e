package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forumkit/membership/bus"
)

func TestPublishReachesAllHandlers(t *testing.T) {
	ctx := context.Background()
	b := New()

	var got []bus.Message
	b.Subscribe(bus.TopicClear, func(m bus.Message) { got = append(got, m) })
	b.Subscribe(bus.TopicClear, func(m bus.Message) { got = append(got, m) })
	b.Subscribe(bus.TopicReset, func(m bus.Message) { t.Error("wrong topic delivered") })

	msg := bus.Message{UID: 7, Group: "team"}
	require.NoError(t, b.Publish(ctx, bus.TopicClear, msg))

	require.Len(t, got, 2)
	require.Equal(t, msg, got[0])
	require.Equal(t, msg, got[1])
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	require.NoError(t, b.Publish(context.Background(), bus.TopicClear, bus.Message{UID: 1, Group: "g"}))
}

func TestCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	b := New()

	delivered := 0
	b.Subscribe(bus.TopicReset, func(bus.Message) { delivered++ })
	require.NoError(t, b.Publish(ctx, bus.TopicReset, bus.Message{}))
	require.Equal(t, 1, delivered)

	require.NoError(t, b.Close(ctx))
	require.NoError(t, b.Publish(ctx, bus.TopicReset, bus.Message{}))
	require.Equal(t, 1, delivered)

	// subscriptions after close are ignored, and closing twice is fine
	b.Subscribe(bus.TopicReset, func(bus.Message) { delivered++ })
	require.NoError(t, b.Publish(ctx, bus.TopicReset, bus.Message{}))
	require.Equal(t, 1, delivered)
	require.NoError(t, b.Close(ctx))
}
