// Package eventbus implements the Event Bus (§4.8): a single-process,
// in-memory publish/subscribe registry. Handlers run synchronously in
// the publisher's goroutine, mirroring the teacher's hook-dispatch
// idiom in pkg/hooks (a registry of named handlers invoked directly
// by the triggering call, no queue or worker pool in between).
package eventbus

import "sync"

// Handler receives whatever data was passed to Publish for its topic.
type Handler func(data interface{})

// Bus is a topic -> []Handler registry guarded by a single mutex, the
// same shape the teacher uses for pkg/hooks' HookManager (a plain
// mutex-guarded map; no library needed for in-process fan-out with no
// transport).
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers handler to run, in registration order, every
// time topic is published.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish invokes every handler registered for topic, synchronously,
// in the calling goroutine. Handlers are snapshotted under the lock
// and run outside it, so a handler calling Subscribe does not deadlock
// and never sees itself added mid-publish.
func (b *Bus) Publish(topic string, data interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}

// Topics used by the Exchange Orchestrator and REPL input pipeline (§4.8).
const (
	TopicExchangeCompleted = "exchange_completed"
	TopicUserInputReceived = "user_input_received"
)
