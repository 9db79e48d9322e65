package bus

import (
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

// subscriberBuffer is the per-subscriber channel depth. A burst longer
// than this against a reader that never drains (a detached display
// process, a stalled trace consumer) drops messages instead of
// stalling the publisher.
const subscriberBuffer = 128

// syncTopic is internal to Sync; nothing stays subscribed to it.
const syncTopic = "bus.sync"

// Subscription receives messages for the topics it was subscribed to.
// The channel closes when the subscription is dropped or the bus shuts
// down.
type Subscription chan any

// MessageBus decouples the protocol loop from its observers. State
// projection, link monitoring and the frame trace all hang off topics
// instead of calling into each other.
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus implements MessageBus on cskr/pubsub. Delivery is
// fire-and-forget: Publish never waits for consumers, so a stuck
// observer cannot hold up a CAT reply.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	return &PubSubBus{ps: pubsub.New(subscriberBuffer), logger: logger}
}

// Publish hands msg to the current subscribers of topic and returns. A
// subscriber whose buffer is full misses the message; every event on
// this bus is a snapshot the next one supersedes.
func (b *PubSubBus) Publish(topic string, msg any) {
	b.ps.TryPub(msg, topic)
	b.logger.Debug("publish", "topic", topic, "type", typeName(msg))
}

func (b *PubSubBus) Subscribe(topic string) Subscription {
	b.logger.Debug("subscribe", "topic", topic)

	return b.ps.Sub(topic)
}

// Unsubscribe detaches ch from the given topics, or from everything
// when none are named. The channel closes once fully detached.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.logger.Debug("unsubscribe", "scope", "all")
		b.ps.Unsub(ch)

		return
	}
	b.logger.Debug("unsubscribe", "topics", topics)
	b.ps.Unsub(ch, topics...)
}

// Sync blocks until everything published before the call has been
// fanned out to subscriber queues. The bus handles commands strictly
// in order, so one round trip through it is a delivery barrier.
// Shutdown uses this to make sure the final state events reach the
// projection before it is flushed.
func (b *PubSubBus) Sync() {
	ch := b.ps.SubOnce(syncTopic)
	b.ps.Pub(struct{}{}, syncTopic)
	<-ch
}

// Close shuts the bus down and closes every subscription channel.
// Publishing after Close blocks forever; stop the publishers first.
func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

func typeName(msg any) string {
	if msg == nil {
		return "<nil>"
	}

	return reflect.TypeOf(msg).String()
}
