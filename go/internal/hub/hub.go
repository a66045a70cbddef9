package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Message is the envelope delivered to subscribers.
type Message struct {
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Config holds hub settings
type Config struct {
	// SubscriberBuffer is how many undelivered messages a subscriber may
	// hold before it is evicted.
	SubscriberBuffer int
}

// DefaultConfig returns default hub configuration
func DefaultConfig() Config {
	return Config{SubscriberBuffer: 256}
}

// Forwarder receives every locally published message, e.g. to relay it to other instances.
type Forwarder func(topic string, data []byte)

// Hub fans published messages out to topic subscribers. Delivery is
// at-most-once with no replay. Each subscriber sees a topic's messages in
// publish order.
type Hub struct {
	// lock order: mu, then topic.mu
	mu          sync.RWMutex
	topics      map[string]*topic
	subscribers map[*Subscriber]struct{}

	config  Config
	clock   clockwork.Clock
	metrics *Metrics
	logger  zerolog.Logger
	forward atomic.Pointer[Forwarder]
}

type topic struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Subscriber is one consumer of hub messages, usually a websocket connection.
type Subscriber struct {
	ID   string
	send chan []byte

	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// Messages returns the subscriber's delivery channel. It is closed when the
// subscriber is removed or evicted.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Topics returns the topics the subscriber is currently on.
func (s *Subscriber) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

// New creates a Hub. A nil metrics disables instrumentation.
func New(config Config, clock clockwork.Clock, metrics *Metrics, logger zerolog.Logger) *Hub {
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = DefaultConfig().SubscriberBuffer
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		topics:      make(map[string]*topic),
		subscribers: make(map[*Subscriber]struct{}),
		config:      config,
		clock:       clock,
		metrics:     metrics,
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

// SetForwarder installs fn to receive every local publish. Pass nil to remove it.
func (h *Hub) SetForwarder(fn Forwarder) {
	if fn == nil {
		h.forward.Store(nil)
		return
	}
	h.forward.Store(&fn)
}

// Publish wraps payload in a Message, marshals it once and delivers it to
// every current subscriber of topicName. It never blocks on subscribers.
func (h *Hub) Publish(topicName string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topicName).Msg("failed to marshal payload")
		return
	}
	data, err := json.Marshal(Message{Topic: topicName, Payload: raw, PublishedAt: h.clock.Now().UTC()})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topicName).Msg("failed to marshal message")
		return
	}
	h.PublishRaw(topicName, data)
}

// PublishRaw delivers an already encoded message locally and to the forwarder.
func (h *Hub) PublishRaw(topicName string, data []byte) {
	h.deliver(topicName, data)
	if fn := h.forward.Load(); fn != nil {
		(*fn)(topicName, data)
	}
}

// deliver enqueues data for local subscribers only.
func (h *Hub) deliver(topicName string, data []byte) {
	h.metrics.published()

	h.mu.RLock()
	t, ok := h.topics[topicName]
	if !ok {
		h.mu.RUnlock()
		return
	}
	t.mu.Lock()
	h.mu.RUnlock()

	var slow []*Subscriber
	delivered := 0
	for s := range t.subs {
		select {
		case s.send <- data:
			delivered++
		default:
			slow = append(slow, s)
		}
	}
	t.mu.Unlock()

	h.metrics.delivered(delivered)
	for _, s := range slow {
		h.logger.Warn().
			Str("subscriber_id", s.ID).
			Str("topic", topicName).
			Msg("subscriber buffer full, evicting")
		h.metrics.evicted()
		h.Remove(s)
	}

	h.logger.Debug().
		Str("topic", topicName).
		Int("subscribers", delivered).
		Msg("message published")
}

// Register creates a subscriber with no topics.
func (h *Hub) Register(id string) *Subscriber {
	s := &Subscriber{
		ID:     id,
		send:   make(chan []byte, h.config.SubscriberBuffer),
		topics: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.setSubscribers(count)
	return s
}

// Subscribe adds s to topicName. Subscribing a removed subscriber is a no-op.
func (h *Hub) Subscribe(s *Subscriber, topicName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[s]; !ok {
		return
	}

	t, ok := h.topics[topicName]
	if !ok {
		t = &topic{subs: make(map[*Subscriber]struct{})}
		h.topics[topicName] = t
		h.metrics.setTopics(len(h.topics))
	}
	t.mu.Lock()
	t.subs[s] = struct{}{}
	t.mu.Unlock()

	s.mu.Lock()
	s.topics[topicName] = struct{}{}
	s.mu.Unlock()
}

// Unsubscribe removes s from topicName.
func (h *Hub) Unsubscribe(s *Subscriber, topicName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(s, topicName)
}

func (h *Hub) unsubscribeLocked(s *Subscriber, topicName string) {
	if t, ok := h.topics[topicName]; ok {
		t.mu.Lock()
		delete(t.subs, s)
		empty := len(t.subs) == 0
		t.mu.Unlock()
		if empty {
			delete(h.topics, topicName)
			h.metrics.setTopics(len(h.topics))
		}
	}

	s.mu.Lock()
	delete(s.topics, topicName)
	s.mu.Unlock()
}

// Remove detaches s from every topic and closes its channel. Safe to call more than once.
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[s]; !ok {
		h.mu.Unlock()
		return
	}
	for _, name := range s.Topics() {
		h.unsubscribeLocked(s, name)
	}
	delete(h.subscribers, s)
	count := len(h.subscribers)
	h.mu.Unlock()

	// no topic references s any more, so nothing can send on the channel
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()

	h.metrics.setSubscribers(count)
}

// Stats reports subscriber counts per topic.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		Subscribers: len(h.subscribers),
		Topics:      make(map[string]int, len(h.topics)),
	}
	for name, t := range h.topics {
		t.mu.Lock()
		stats.Topics[name] = len(t.subs)
		t.mu.Unlock()
	}
	return stats
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Subscribers int            `json:"total_subscribers"`
	Topics      map[string]int `json:"topics"`
}

// sendDirect enqueues data for one subscriber without touching topics.
// It drops the message if the buffer is full or s was removed.
func (h *Hub) sendDirect(s *Subscriber, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}
