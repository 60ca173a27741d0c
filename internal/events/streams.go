package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStreamPrefix namespaces stream keys.
const DefaultStreamPrefix = "moneymap:events"

// Streams publishes events to Redis Streams, one stream per topic.
type Streams struct {
	client *redis.Client
	prefix string
	maxLen int64
	logger *zap.Logger
}

// NewStreams wraps an existing client. The caller owns the client and
// closes it. maxLen caps each stream approximately; zero leaves it
// unbounded.
func NewStreams(client *redis.Client, prefix string, maxLen int64, logger *zap.Logger) *Streams {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streams{client: client, prefix: prefix, maxLen: maxLen, logger: logger}
}

// StreamKey returns the Redis key of topic's stream.
func (s *Streams) StreamKey(topic string) string {
	return fmt.Sprintf("%s:%s", s.prefix, topic)
}

// Publish appends ev to the topic's stream under the "data" field.
func (s *Streams) Publish(ctx context.Context, topic string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.StreamKey(topic),
		Values: map[string]interface{}{
			"type": ev.Type,
			"data": string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("add to stream: %w", err)
	}

	s.logger.Debug("event published",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("stream", args.Stream),
		zap.String("message_id", id))
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (s *Streams) Close() error { return nil }

// Decode parses a stream message written by Publish.
func Decode(msg redis.XMessage) (Event, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("message %s: missing data field", msg.ID)
	}
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return Event{}, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return ev, nil
}
