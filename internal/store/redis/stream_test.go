package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkUSD-Protocol/services/internal/domain/event"
)

func TestParseStreamOffset(t *testing.T) {
	t.Parallel()

	good := map[string]int64{
		"":     0,
		"0":    0,
		"9":    9,
		"7-3":  7,
		" 19 ": 19,
		"-5":   0, // negatives clamp instead of erroring
	}
	for input, want := range good {
		got, err := parseStreamOffset(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	for _, input := range []string{"abc", "x-0"} {
		_, err := parseStreamOffset(input)
		require.Error(t, err, "input %q", input)
	}
}

func TestValidateStreamOffset(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "0", "42", "100-0", "3-1"} {
		assert.NoError(t, validateStreamOffset(input), "input %q", input)
	}
	for _, input := range []string{"abc", "-1", "100-", "-100", "1-x"} {
		assert.Error(t, validateStreamOffset(input), "input %q", input)
	}
}

type testStringer struct{ value string }

func (s testStringer) String() string { return s.value }

func TestStreamPayload(t *testing.T) {
	t.Parallel()

	raw := `{"blockHeight":7}`

	got, err := streamPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), got)

	got, err = streamPayload([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), got)

	got, err = streamPayload(testStringer{value: raw})
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), got)

	_, err = streamPayload(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestInMemoryStream_CycleRecordRoundtrip(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx := context.Background()
	record := event.CycleRecord{
		BlockHeight:    105,
		Price:          "2450000000",
		EventsIngested: 3,
		UpdatedVaults:  []string{"B62qvault1"},
		CompletedAt:    time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
	}

	id, err := stream.PublishJSON(ctx, CycleStream, record)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var dst event.CycleRecord
	nextID, err := stream.ReadJSON(ctx, CycleStream, "0", &dst)
	require.NoError(t, err)
	assert.Equal(t, id, nextID)
	assert.Equal(t, uint32(105), dst.BlockHeight)
	assert.Equal(t, "2450000000", dst.Price)
	assert.Equal(t, 3, dst.EventsIngested)
	assert.Equal(t, []string{"B62qvault1"}, dst.UpdatedVaults)
	assert.True(t, dst.CompletedAt.Equal(record.CompletedAt))
}

func TestInMemoryStream_ReadJSON_WakesOnPublish(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type readResult struct {
		rec event.CycleRecord
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		var dst event.CycleRecord
		_, err := stream.ReadJSON(ctx, CycleStream, "0", &dst)
		done <- readResult{dst, err}
	}()

	// The reader starts against an empty stream and must block.
	time.Sleep(50 * time.Millisecond)
	_, err := stream.PublishJSON(ctx, CycleStream, event.CycleRecord{BlockHeight: 9})
	require.NoError(t, err)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, uint32(9), res.rec.BlockHeight)
	case <-time.After(2 * time.Second):
		t.Fatal("reader never woke up after publish")
	}
}

func TestInMemoryStream_ReadJSON_ContextCancellation(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst event.CycleRecord
	_, err := stream.ReadJSON(ctx, "empty-stream", "0", &dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryStream_ReadJSON_RejectsMalformedLastID(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	var dst event.CycleRecord
	_, err := stream.ReadJSON(context.Background(), CycleStream, "garbage", &dst)
	require.Error(t, err)
}

func TestInMemoryStream_Checkpoints(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()
	ctx := context.Background()

	value, err := stream.LoadStreamCheckpoint(ctx, "consumer-a")
	require.NoError(t, err)
	assert.Empty(t, value, "missing checkpoint reads as empty")

	require.NoError(t, stream.PersistStreamCheckpoint(ctx, "consumer-a", "42-0"))

	value, err = stream.LoadStreamCheckpoint(ctx, "consumer-a")
	require.NoError(t, err)
	assert.Equal(t, "42-0", value)

	require.Error(t, stream.PersistStreamCheckpoint(ctx, "consumer-a", "abc"),
		"malformed offsets must be rejected")

	value, err = stream.LoadStreamCheckpoint(ctx, "consumer-a")
	require.NoError(t, err)
	assert.Equal(t, "42-0", value, "a rejected persist must not clobber the checkpoint")
}

func TestInMemoryStream_Checkpoint_EmptyKeyIsNoop(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()
	ctx := context.Background()

	require.NoError(t, stream.PersistStreamCheckpoint(ctx, "", "42"))

	value, err := stream.LoadStreamCheckpoint(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestInMemoryStream_Close(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	ctx := context.Background()

	_, _ = stream.PublishJSON(ctx, CycleStream, event.CycleRecord{BlockHeight: 1})
	_ = stream.PersistStreamCheckpoint(ctx, "consumer-a", "1")

	require.NoError(t, stream.Close())

	stream.mu.Lock()
	assert.Empty(t, stream.streams)
	assert.Empty(t, stream.checkpoints)
	stream.mu.Unlock()
}

func TestInMemoryStream_OrderPreserved(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()
	ctx := context.Background()

	for h := uint32(101); h <= 103; h++ {
		_, err := stream.PublishJSON(ctx, CycleStream, event.CycleRecord{BlockHeight: h})
		require.NoError(t, err)
	}

	var got []uint32
	lastID := "0"
	for i := 0; i < 3; i++ {
		var dst event.CycleRecord
		nextID, err := stream.ReadJSON(ctx, CycleStream, lastID, &dst)
		require.NoError(t, err)
		got = append(got, dst.BlockHeight)
		lastID = nextID
	}
	assert.Equal(t, []uint32{101, 102, 103}, got)
}
