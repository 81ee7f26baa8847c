package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	rediscommon "skyfire-equipment/common/redis"
)

// DefaultStream 事件流名称
const DefaultStream = "equipment:config:events"

// StreamWriter 写入 Redis Stream
type StreamWriter func(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error)

// RedisStreamWriter 基于 go-redis 的 StreamWriter
func RedisStreamWriter(client *redis.Client) StreamWriter {
	return func(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error) {
		return rediscommon.PublishToStream(ctx, client, stream, maxLen, values)
	}
}

// StreamPublisher 通过 Redis Streams 发布事件
type StreamPublisher struct {
	write  StreamWriter
	stream string
	maxLen int64
}

func NewStreamPublisher(write StreamWriter, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{write: write, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, evt Event) error {
	_, err := p.write(ctx, p.stream, p.maxLen, map[string]interface{}{
		"event_id":   evt.EventID,
		"type":       evt.Type,
		"project_id": evt.ProjectID,
		"batch_id":   evt.BatchID,
		"version":    evt.Version,
		"keys":       evt.Keys,
		"timestamp":  evt.Timestamp.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to stream %s: %w", p.stream, err)
	}
	return nil
}
