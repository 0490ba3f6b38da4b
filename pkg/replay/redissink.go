package replay

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// RedisClient defines the subset of Redis operations a RedisSink needs.
// Compatible with github.com/redis/go-redis/v9, mirroring
// pkg/session.RedisClient's "interface, not import" approach so this
// package stays buildable without pulling in a Redis driver.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	RPush(ctx context.Context, key string, values ...interface{}) RedisIntCmd
	LRange(ctx context.Context, key string, start, stop int64) RedisStringSliceCmd
	Close() error
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// RedisStringSliceCmd represents a Redis list-range command result.
type RedisStringSliceCmd interface {
	Result() ([]string, error)
}

// ErrRedisNil mirrors redis.Nil: the key doesn't exist.
var ErrRedisNil = errors.New("redis: nil")

// RedisSink persists frames to a Redis list (append-only via RPUSH) and
// metadata to a single string key. Grounded on pkg/session.RedisStore's
// key-prefixing and Set/Get usage, generalized from a single blob per
// session to an append-only list per Land.
type RedisSink struct {
	client RedisClient
	prefix string
}

// RedisSinkOption configures a RedisSink.
type RedisSinkOption func(*redisSinkConfig)

type redisSinkConfig struct {
	prefix string
}

// WithRedisSinkPrefix sets the key prefix. Default: "landkeeper:recording:".
func WithRedisSinkPrefix(prefix string) RedisSinkOption {
	return func(c *redisSinkConfig) { c.prefix = prefix }
}

// NewRedisSink constructs a sink recording landID's frames via client.
func NewRedisSink(client RedisClient, landID string, opts ...RedisSinkOption) *RedisSink {
	cfg := &redisSinkConfig{prefix: "landkeeper:recording:"}
	for _, opt := range opts {
		opt(cfg)
	}
	return &RedisSink{client: client, prefix: cfg.prefix + landID}
}

func (s *RedisSink) metaKey() string   { return s.prefix + ":metadata" }
func (s *RedisSink) framesKey() string { return s.prefix + ":frames" }

// WriteMetadata implements Sink.
func (s *RedisSink) WriteMetadata(meta Metadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Set(ctx, s.metaKey(), payload, 0).Err()
}

// AppendFrames implements Sink.
func (s *RedisSink) AppendFrames(frames []FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}
	values := make([]interface{}, len(frames))
	for i, f := range frames {
		payload, err := json.Marshal(f)
		if err != nil {
			return err
		}
		values[i] = payload
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.client.RPush(ctx, s.framesKey(), values...).Err()
}

// Close implements Sink. It does not close the underlying RedisClient,
// which may be shared with other components.
func (s *RedisSink) Close() error { return nil }

// LoadDocumentFromRedis reads back the full recording for landID, for an
// ActionSource driving replay from Redis.
func LoadDocumentFromRedis(ctx context.Context, client RedisClient, prefix, landID string) (Document, error) {
	s := NewRedisSink(client, landID, WithRedisSinkPrefix(prefix))

	var doc Document
	metaBytes, err := client.Get(ctx, s.metaKey()).Bytes()
	if err != nil && err.Error() != ErrRedisNil.Error() {
		return Document{}, err
	}
	if len(metaBytes) > 0 {
		if err := json.Unmarshal(metaBytes, &doc.Metadata); err != nil {
			return Document{}, err
		}
	}

	raw, err := s.client.LRange(ctx, s.framesKey(), 0, -1).Result()
	if err != nil {
		return Document{}, err
	}
	doc.Frames = make([]FrameRecord, 0, len(raw))
	for _, r := range raw {
		var fr FrameRecord
		if err := json.Unmarshal([]byte(r), &fr); err != nil {
			return Document{}, err
		}
		doc.Frames = append(doc.Frames, fr)
	}
	return doc, nil
}
