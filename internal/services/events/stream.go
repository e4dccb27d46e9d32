package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
)

// StreamName is the Redis stream shared by the run scheduler and this worker.
const StreamName = "ml:run-events"

// Stream wraps the Redis stream used for run events.
type Stream struct {
	client *redis.Client
	logger arbor.ILogger
}

// NewStream creates the event stream over a Redis connection.
func NewStream(addr string, logger arbor.ILogger) *Stream {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	return &Stream{client: client, logger: logger}
}

// Ping verifies the Redis connection.
func (s *Stream) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *Stream) Close() error {
	return s.client.Close()
}

// Publish appends an event's fields to the stream.
func (s *Stream) Publish(ctx context.Context, fields map[string]interface{}) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: fields,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Entry is one raw stream entry.
type Entry struct {
	ID     string
	Values map[string]interface{}
}

// Read blocks up to one second waiting for entries after lastID, returning
// at most ten. "$" starts at the stream tail. A timeout returns no entries
// and no error.
func (s *Stream) Read(ctx context.Context, lastID string) ([]Entry, error) {
	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{StreamName, lastID},
		Count:   10,
		Block:   time.Second,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}

	var entries []Entry
	for _, stream := range streams {
		for _, message := range stream.Messages {
			entries = append(entries, Entry{ID: message.ID, Values: message.Values})
		}
	}
	return entries, nil
}
