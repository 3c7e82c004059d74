package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragmux/internal/model"
)

func TestPublish_DeliversToSubscriberInOrderWithIncrementingSeq(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("s1")
	defer b.Unsubscribe(sub)

	b.Publish(model.ChatEvent{SessionID: "s1", Type: model.EventThinking, Data: "first"})
	b.Publish(model.ChatEvent{SessionID: "s1", Type: model.EventThinking, Data: "second"})

	first := <-sub.Events
	second := <-sub.Events
	assert.Equal(t, "first", first.Data)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "second", second.Data)
	assert.Equal(t, int64(2), second.Seq)
}

func TestPublish_OnlyDeliversToMatchingSession(t *testing.T) {
	b := New(4)
	subA := b.Subscribe("a")
	subB := b.Subscribe("b")
	defer b.Unsubscribe(subA)
	defer b.Unsubscribe(subB)

	b.Publish(model.ChatEvent{SessionID: "a", Data: "for a"})

	select {
	case evt := <-subA.Events:
		assert.Equal(t, "for a", evt.Data)
	default:
		t.Fatal("expected event for subscriber a")
	}

	select {
	case <-subB.Events:
		t.Fatal("subscriber b should not have received a's event")
	default:
	}
}

func TestPublish_DropsSlowSubscriberOnceChannelFull(t *testing.T) {
	b := New(1)
	sub := b.Subscribe("s1")

	b.Publish(model.ChatEvent{SessionID: "s1", Data: "one"})
	b.Publish(model.ChatEvent{SessionID: "s1", Data: "two"})

	assert.Equal(t, 0, b.SubscriberCount("s1"))
	_, open := <-sub.Events
	_ = open
}

func TestUnsubscribe_RemovesSubscriberAndClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("s1")
	require.Equal(t, 1, b.SubscriberCount("s1"))

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount("s1"))

	_, open := <-sub.Events
	assert.False(t, open)
}

func TestSubscriberCount_TracksMultipleSubscribersIndependently(t *testing.T) {
	b := New(4)
	sub1 := b.Subscribe("s1")
	sub2 := b.Subscribe("s1")
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	assert.Equal(t, 2, b.SubscriberCount("s1"))
	assert.Equal(t, 0, b.SubscriberCount("other"))
}
