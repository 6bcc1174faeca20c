package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_InvokesAllSubscribersInOrder(t *testing.T) {
	b := New()
	var order []int

	b.Subscribe("topic", func(interface{}) { order = append(order, 1) })
	b.Subscribe("topic", func(interface{}) { order = append(order, 2) })

	b.Publish("topic", nil)

	assert.Equal(t, []int{1, 2}, order)
}

func TestPublish_PassesDataThrough(t *testing.T) {
	b := New()
	var got interface{}
	b.Subscribe("topic", func(data interface{}) { got = data })

	b.Publish("topic", "payload")

	assert.Equal(t, "payload", got)
}

func TestPublish_UnsubscribedTopicIsNoop(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Publish("nothing", nil) })
}

func TestSubscribe_DuringPublishDoesNotRunThisRound(t *testing.T) {
	b := New()
	ran := false
	b.Subscribe("topic", func(interface{}) {
		b.Subscribe("topic", func(interface{}) { ran = true })
	})

	b.Publish("topic", nil)
	assert.False(t, ran)

	b.Publish("topic", nil)
	assert.True(t, ran)
}
