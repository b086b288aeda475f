package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()

	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubSecond()

	bus.Publish(New(TypePostCreated, "u1", PostCreated{PostID: "p1", AuthorID: "u1"}))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, TypePostCreated, e.Type)
			assert.Equal(t, "u1", e.ActorID)
			assert.NotEmpty(t, e.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	unsubFirst()
	unsubFirst()
	_, open := <-first
	assert.False(t, open)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypePostLiked, "u1", nil))
	}

	require.Len(t, ch, subscriberBuffer)
	assert.EqualValues(t, 10, bus.Dropped())
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	bus.Close()
	_, open := <-ch
	assert.False(t, open)

	unsubscribe()

	late, cancel := bus.Subscribe()
	_, open = <-late
	assert.False(t, open)
	cancel()
}
