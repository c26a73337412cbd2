package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CycleStream is the default stream downstream services consume completed
// cycle records from.
const CycleStream = "zkusd:oracle:cycles"

const payloadField = "payload"

// MessageTransport carries completed cycle records to downstream consumers.
// PublishJSON appends and returns the assigned entry ID; ReadJSON blocks
// until an entry newer than lastID arrives, or ctx is done.
type MessageTransport interface {
	PublishJSON(ctx context.Context, stream string, v any) (string, error)
	ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error)
	LoadStreamCheckpoint(ctx context.Context, key string) (string, error)
	PersistStreamCheckpoint(ctx context.Context, key, offset string) error
	Close() error
}

// Stream provides Redis Streams abstraction for process separation: the
// engine publishes here and downstream services tail the stream at their
// own pace.
type Stream struct {
	client *redis.Client
}

var _ MessageTransport = (*Stream)(nil)

func NewStream(url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client}, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

func (s *Stream) PublishJSON(ctx context.Context, stream string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

func (s *Stream) ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error) {
	if lastID == "" {
		lastID = "0"
	}

	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   1,
		Block:   0,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xread %s: %w", stream, err)
	}

	for _, sr := range res {
		for _, msg := range sr.Messages {
			raw, ok := msg.Values[payloadField]
			if !ok {
				return "", fmt.Errorf("stream %s entry %s missing %s field", stream, msg.ID, payloadField)
			}
			data, err := streamPayload(raw)
			if err != nil {
				return "", err
			}
			if err := json.Unmarshal(data, dst); err != nil {
				return "", fmt.Errorf("unmarshal stream payload: %w", err)
			}
			return msg.ID, nil
		}
	}
	return "", fmt.Errorf("xread %s returned no entries", stream)
}

func (s *Stream) LoadStreamCheckpoint(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load stream checkpoint %s: %w", key, err)
	}
	return val, nil
}

func (s *Stream) PersistStreamCheckpoint(ctx context.Context, key, offset string) error {
	if key == "" {
		return nil
	}
	if err := validateStreamOffset(offset); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, offset, 0).Err(); err != nil {
		return fmt.Errorf("persist stream checkpoint %s: %w", key, err)
	}
	return nil
}

// streamPayload converts the value Redis hands back for the payload field
// into raw bytes.
func streamPayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case fmt.Stringer:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("stream payload type %T is not supported", v)
	}
}

// parseStreamOffset extracts the sequence component of a stream entry ID.
// Compound IDs ("123-0") parse to their first component; negatives clamp
// to zero.
func parseStreamOffset(offset string) (int64, error) {
	trimmed := strings.TrimSpace(offset)
	if trimmed == "" {
		return 0, nil
	}
	head := trimmed
	if i := strings.Index(trimmed, "-"); i > 0 {
		head = trimmed[:i]
	}
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stream offset %q: %w", offset, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// validateStreamOffset rejects offsets that could not have come from a
// stream entry ID. Unlike parseStreamOffset it does not clamp.
func validateStreamOffset(offset string) error {
	if offset == "" {
		return nil
	}
	parts := strings.SplitN(offset, "-", 2)
	seq, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || seq < 0 {
		return fmt.Errorf("invalid stream offset %q", offset)
	}
	if len(parts) == 2 {
		sub, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || sub < 0 {
			return fmt.Errorf("invalid stream offset %q", offset)
		}
	}
	return nil
}

type inMemoryEntry struct {
	seq  int64
	data []byte
}

// InMemoryStream is a MessageTransport for single-process deployments and
// tests. Entries live in memory; readers block on a broadcast channel that
// is replaced on every publish.
type InMemoryStream struct {
	mu          sync.Mutex
	seq         int64
	streams     map[string][]inMemoryEntry
	checkpoints map[string]string
	wake        chan struct{}
}

var _ MessageTransport = (*InMemoryStream)(nil)

func NewInMemoryStream() *InMemoryStream {
	return &InMemoryStream{
		streams:     make(map[string][]inMemoryEntry),
		checkpoints: make(map[string]string),
		wake:        make(chan struct{}),
	}
}

func (s *InMemoryStream) PublishJSON(_ context.Context, stream string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("%d-0", s.seq)
	s.streams[stream] = append(s.streams[stream], inMemoryEntry{seq: s.seq, data: data})
	close(s.wake)
	s.wake = make(chan struct{})
	s.mu.Unlock()

	return id, nil
}

func (s *InMemoryStream) ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error) {
	after, err := parseStreamOffset(lastID)
	if err != nil {
		return "", err
	}

	for {
		s.mu.Lock()
		for _, e := range s.streams[stream] {
			if e.seq <= after {
				continue
			}
			s.mu.Unlock()
			if err := json.Unmarshal(e.data, dst); err != nil {
				return "", fmt.Errorf("unmarshal stream payload: %w", err)
			}
			return fmt.Sprintf("%d-0", e.seq), nil
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wake:
		}
	}
}

func (s *InMemoryStream) LoadStreamCheckpoint(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[key], nil
}

func (s *InMemoryStream) PersistStreamCheckpoint(_ context.Context, key, offset string) error {
	if key == "" {
		return nil
	}
	if err := validateStreamOffset(offset); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[key] = offset
	return nil
}

// Close drops all buffered entries and checkpoints.
func (s *InMemoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]inMemoryEntry)
	s.checkpoints = make(map[string]string)
	close(s.wake)
	s.wake = make(chan struct{})
	return nil
}
