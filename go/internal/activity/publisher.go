package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// StreamConfig describes the JetStream stream activity is published to
type StreamConfig struct {
	StreamName      string
	SubjectPrefix   string
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
}

// DefaultStreamConfig returns default stream settings
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		StreamName:      "FOCUSFLOW_ACTIVITY",
		SubjectPrefix:   "focusflow.activity",
		MaxAge:          7 * 24 * time.Hour, // 7 days
		MaxMsgs:         -1,                 // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// JetStreamPublisher forwards recorded activity to a JetStream stream
type JetStreamPublisher struct {
	js     jetstream.JetStream
	config StreamConfig
	logger zerolog.Logger
}

// NewJetStreamPublisher creates the stream if needed. The caller owns nc.
func NewJetStreamPublisher(ctx context.Context, nc *nats.Conn, cfg StreamConfig, logger zerolog.Logger) (*JetStreamPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{
		js:     js,
		config: cfg,
		logger: logger.With().Str("component", "activity_publisher").Logger(),
	}
	if err := p.ensureStream(ctx); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Focus session activity log",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := p.streamConfig()

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		p.logger.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		p.logger.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Subject returns the subject an activity type is published on
func (p *JetStreamPublisher) Subject(t models.ActivityType) string {
	return p.config.SubjectPrefix + "." + string(t)
}

// Publish sends entry to the stream. The entry ID doubles as the message
// ID, so a retried publish is deduplicated by the server.
func (p *JetStreamPublisher) Publish(ctx context.Context, entry *models.ActivityLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	header := nats.Header{
		"Activity-Type": []string{string(entry.Type)},
		"Activity-ID":   []string{entry.ID.String()},
		"User-ID":       []string{entry.UserID.String()},
	}
	if entry.SessionID != nil {
		header.Set("Session-ID", entry.SessionID.String())
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: p.Subject(entry.Type),
		Data:    data,
		Header:  header,
	},
		jetstream.WithMsgID(entry.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	p.logger.Debug().
		Str("activity_id", entry.ID.String()).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published activity")
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
