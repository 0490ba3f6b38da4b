package replay

import (
	"context"
	"sync"
	"testing"
	"time"
)

type mockRedisStatusCmd struct{ err error }

func (c mockRedisStatusCmd) Err() error { return c.err }

type mockRedisStringCmd struct {
	data []byte
	err  error
}

func (c mockRedisStringCmd) Bytes() ([]byte, error) { return c.data, c.err }
func (c mockRedisStringCmd) Err() error             { return c.err }

type mockRedisIntCmd struct{ err error }

func (c mockRedisIntCmd) Err() error { return c.err }

type mockRedisStringSliceCmd struct {
	values []string
	err    error
}

func (c mockRedisStringSliceCmd) Result() ([]string, error) { return c.values, c.err }

type mockRedisClient struct {
	mu    sync.Mutex
	sets  map[string][]byte
	lists map[string][][]byte
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{sets: make(map[string][]byte), lists: make(map[string][][]byte)}
}

func (c *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		}
	}
	c.sets[key] = b
	return mockRedisStatusCmd{}
}

func (c *mockRedisClient) Get(ctx context.Context, key string) RedisStringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.sets[key]
	if !ok {
		return mockRedisStringCmd{err: ErrRedisNil}
	}
	return mockRedisStringCmd{data: b}
}

func (c *mockRedisClient) RPush(ctx context.Context, key string, values ...interface{}) RedisIntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		b, ok := v.([]byte)
		if !ok {
			continue
		}
		c.lists[key] = append(c.lists[key], b)
	}
	return mockRedisIntCmd{}
}

func (c *mockRedisClient) LRange(ctx context.Context, key string, start, stop int64) RedisStringSliceCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.lists[key]))
	for _, b := range c.lists[key] {
		out = append(out, string(b))
	}
	return mockRedisStringSliceCmd{values: out}
}

func (c *mockRedisClient) Close() error { return nil }

func TestRedisSinkWritesMetadataAndAppendsFrames(t *testing.T) {
	client := newMockRedisClient()
	sink := NewRedisSink(client, "land-1")

	if err := sink.WriteMetadata(Metadata{LandID: "land-1"}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := sink.AppendFrames([]FrameRecord{{TickID: 1}, {TickID: 2}}); err != nil {
		t.Fatalf("AppendFrames: %v", err)
	}

	doc, err := LoadDocumentFromRedis(context.Background(), client, "landkeeper:recording:", "land-1")
	if err != nil {
		t.Fatalf("LoadDocumentFromRedis: %v", err)
	}
	if doc.Metadata.LandID != "land-1" {
		t.Fatalf("LandID = %q, want land-1", doc.Metadata.LandID)
	}
	if len(doc.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(doc.Frames))
	}
	if doc.Frames[1].TickID != 2 {
		t.Fatalf("Frames[1].TickID = %d, want 2", doc.Frames[1].TickID)
	}
}

func TestRedisSinkMetadataMissingIsNotAnError(t *testing.T) {
	client := newMockRedisClient()
	doc, err := LoadDocumentFromRedis(context.Background(), client, "landkeeper:recording:", "unknown-land")
	if err != nil {
		t.Fatalf("LoadDocumentFromRedis: %v", err)
	}
	if doc.Metadata.LandID != "" || len(doc.Frames) != 0 {
		t.Fatalf("expected an empty Document, got %+v", doc)
	}
}
