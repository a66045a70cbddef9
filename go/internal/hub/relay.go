package hub

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	headerOrigin = "Origin"
	headerTopic  = "Topic"
)

// Relay mirrors hub traffic between instances over core NATS. Local
// publishes go out on <prefix>.<topic>; messages from other instances are
// delivered to local subscribers only. Relay failures never reach publishers.
type Relay struct {
	nc      *nats.Conn
	hub     *Hub
	prefix  string
	origin  string
	sub     *nats.Subscription
	metrics *Metrics
	logger  zerolog.Logger
}

// NewRelay creates a relay for h. prefix defaults to "focusflow.hub".
func NewRelay(nc *nats.Conn, h *Hub, prefix string, logger zerolog.Logger) *Relay {
	if prefix == "" {
		prefix = "focusflow.hub"
	}
	return &Relay{
		nc:      nc,
		hub:     h,
		prefix:  prefix,
		origin:  uuid.NewString(),
		metrics: h.metrics,
		logger:  logger.With().Str("component", "hub_relay").Logger(),
	}
}

// Start subscribes to remote traffic and begins forwarding local publishes.
func (r *Relay) Start() error {
	sub, err := r.nc.Subscribe(r.prefix+".>", r.handleRemote)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.prefix, err)
	}
	r.sub = sub
	r.hub.SetForwarder(r.forward)

	r.logger.Info().Str("prefix", r.prefix).Str("origin", r.origin).Msg("hub relay started")
	return nil
}

// Stop detaches the relay from the hub and NATS.
func (r *Relay) Stop() {
	r.hub.SetForwarder(nil)
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to unsubscribe hub relay")
		}
	}
}

func (r *Relay) forward(topic string, data []byte) {
	err := r.nc.PublishMsg(&nats.Msg{
		Subject: r.subject(topic),
		Data:    data,
		Header: nats.Header{
			headerOrigin: []string{r.origin},
			headerTopic:  []string{topic},
		},
	})
	r.metrics.relayed("out", err)
	if err != nil {
		r.logger.Error().Err(err).Str("topic", topic).Msg("failed to relay message")
	}
}

func (r *Relay) handleRemote(msg *nats.Msg) {
	if msg.Header.Get(headerOrigin) == r.origin {
		return
	}
	topic := msg.Header.Get(headerTopic)
	if topic == "" {
		topic = r.topic(msg.Subject)
	}
	r.metrics.relayed("in", nil)
	r.hub.deliver(topic, msg.Data)
}

// subject maps session/ABC123/user-joined to <prefix>.session.ABC123.user-joined
func (r *Relay) subject(topic string) string {
	return r.prefix + "." + strings.ReplaceAll(topic, "/", ".")
}

func (r *Relay) topic(subject string) string {
	return strings.ReplaceAll(strings.TrimPrefix(subject, r.prefix+"."), ".", "/")
}
