package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

const DefaultRelayTopic = "collab:events"

// RedisRelay shares accepted envelopes between server instances over redis
// pub/sub. Messages published by this instance are ignored on receipt.
type RedisRelay struct {
	client       redis.UniversalClient
	topic        string
	instance     string
	logger       *zap.Logger
	onSubscribed func(context.Context)
}

type relayMessage struct {
	Instance string          `json:"instance"`
	Envelope events.Envelope `json:"envelope"`
}

func NewRedisRelay(client redis.UniversalClient, topic string, logger *zap.Logger) *RedisRelay {
	if topic == "" {
		topic = DefaultRelayTopic
	}
	return &RedisRelay{
		client:   client,
		topic:    topic,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// OnSubscribed registers fn to run each time Run has confirmed its
// subscription. Messages published before that point are not delivered, so
// fn is where a receiver catches up on them.
func (r *RedisRelay) OnSubscribed(fn func(context.Context)) {
	r.onSubscribed = fn
}

func (r *RedisRelay) Instance() string {
	return r.instance
}

func (r *RedisRelay) Publish(ctx context.Context, env events.Envelope) error {
	data, err := json.Marshal(relayMessage{Instance: r.instance, Envelope: env})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.topic, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.topic, err)
	}
	return nil
}

// Run hands envelopes from other instances to apply until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, apply func(context.Context, events.Envelope) error) error {
	sub := r.client.Subscribe(ctx, r.topic)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}
	r.logger.Info("relay subscribed", zap.String("topic", r.topic), zap.String("instance", r.instance))
	if r.onSubscribed != nil {
		r.onSubscribed(ctx)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload, apply)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string, apply func(context.Context, events.Envelope) error) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.logger.Warn("malformed relay message", zap.Error(err))
		return
	}
	if m.Instance == r.instance {
		return
	}
	if err := apply(ctx, m.Envelope); err != nil {
		r.logger.Warn("relay event rejected",
			zap.String("event_id", m.Envelope.ID),
			zap.String("event", string(m.Envelope.Event)),
			zap.String("from", m.Instance),
			zap.Error(err),
		)
	}
}
