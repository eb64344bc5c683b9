package broker

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func bootstrap(t *testing.T) *Hub {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	return NewHub(logger.Sugar())
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := bootstrap(t)

	first := h.Subscribe()
	second := h.Subscribe()
	require.Equal(t, 2, h.Len())

	h.Publish(EventChats, "hi")

	for _, sub := range []*Subscriber{first, second} {
		msg := <-sub.Events()
		require.Equal(t, EventChats, msg.Event)
		require.Equal(t, "hi", msg.Data)
	}
}

func TestPublishIncludesPublisher(t *testing.T) {
	h := bootstrap(t)

	sub := h.Subscribe()
	h.Publish(EventChats, "self")

	msg := <-sub.Events()
	require.Equal(t, "self", msg.Data)
}

func TestPublishExceptSkipsOrigin(t *testing.T) {
	h := bootstrap(t)

	origin := h.Subscribe()
	other := h.Subscribe()

	h.PublishExcept(EventUserOnline, "u1", origin)

	msg := <-other.Events()
	require.Equal(t, EventUserOnline, msg.Event)
	require.Equal(t, "u1", msg.Data)
	require.Empty(t, origin.events)
}

func TestPublishOrder(t *testing.T) {
	h := bootstrap(t)

	sub := h.Subscribe()
	for i := 0; i < 100; i++ {
		h.Publish(EventChats, strconv.Itoa(i))
	}

	for i := 0; i < 100; i++ {
		msg := <-sub.Events()
		require.Equal(t, strconv.Itoa(i), msg.Data)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := bootstrap(t)

	sub := h.Subscribe()
	h.Unsubscribe(sub)
	require.Equal(t, 0, h.Len())

	_, ok := <-sub.Events()
	require.False(t, ok)

	// second call is a no-op
	h.Unsubscribe(sub)
}

func TestUnsubscribedMissesLaterEvents(t *testing.T) {
	h := bootstrap(t)

	gone := h.Subscribe()
	stays := h.Subscribe()
	h.Unsubscribe(gone)

	h.Publish(EventChats, "later")

	msg := <-stays.Events()
	require.Equal(t, "later", msg.Data)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := bootstrap(t)

	sub := h.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(EventChats, i)
	}

	require.Len(t, sub.events, subscriberBuffer)
}

func TestClose(t *testing.T) {
	h := bootstrap(t)

	sub := h.Subscribe()
	h.Close()

	_, ok := <-sub.Events()
	require.False(t, ok)

	require.Nil(t, h.Subscribe())

	// publishing after close is a no-op
	h.Publish(EventChats, "ignored")
}
