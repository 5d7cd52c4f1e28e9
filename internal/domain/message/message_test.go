package message

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		content string
		opts    []Option
		wantErr error
	}{
		{
			name:    "side A with session",
			source:  SourceSideA,
			content: "YT1234567890123 催件",
			opts:    []Option{WithSessionID("s1")},
		},
		{
			name:    "side B without session",
			source:  SourceSideB,
			content: "YT1234567890123 已加急处理",
		},
		{
			name:    "invalid source",
			source:  Source("side_c"),
			content: "hello",
			wantErr: ErrInvalidSource,
		},
		{
			name:    "blank content",
			source:  SourceSideB,
			content: "   ",
			wantErr: ErrEmptyContent,
		},
		{
			name:    "side A missing session",
			source:  SourceSideA,
			content: "YT1234567890123 催件",
			wantErr: ErrMissingSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.source, tt.content, tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, m.Source())
			assert.Equal(t, tt.content, m.Content())
			assert.NotEqual(t, uuid.Nil, m.ID())
		})
	}
}

func TestMessage_OrderNumbersIsCopy(t *testing.T) {
	orders := []string{"YT1234567890123", "YT9999999999999"}
	m, err := New(SourceSideA, "two orders", WithSessionID("s1"), WithOrderNumbers(orders))
	require.NoError(t, err)

	orders[0] = "mutated"
	got := m.OrderNumbers()
	got[1] = "mutated"

	assert.Equal(t, []string{"YT1234567890123", "YT9999999999999"}, m.OrderNumbers())
	primary, ok := m.PrimaryOrder()
	assert.True(t, ok)
	assert.Equal(t, "YT1234567890123", primary)
}

func TestMessage_Accessors(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m, err := New(SourceSideB, "reply", WithSender("小圆"), WithTimestamp(ts))
	require.NoError(t, err)

	assert.Equal(t, "小圆", m.Sender())
	assert.Equal(t, ts, m.Timestamp())
	assert.Equal(t, SideBBufferKey, m.BufferKey())
	assert.False(t, m.HasOrderNumbers())
	_, ok := m.PrimaryOrder()
	assert.False(t, ok)
	assert.Equal(t, SourceSideA, m.Source().Opposite())
}

func TestStage_Transitions(t *testing.T) {
	assert.True(t, StageDiscovered.CanTransitionTo(StageFiltered))
	assert.True(t, StageFiltered.CanTransitionTo(StageDropped))
	assert.False(t, StageFiltered.CanTransitionTo(StageBuffered))
	assert.True(t, StageDelivering.CanTransitionTo(StageDelivering))
	assert.True(t, StageDelivering.CanTransitionTo(StageDelivered))
	assert.False(t, StageDelivered.CanTransitionTo(StageDropped))
	assert.False(t, StageDropped.CanTransitionTo(StageDiscovered))

	assert.Equal(t, "DEDUP_CHECKED", StageDedupChecked.String())
	assert.Equal(t, "UNKNOWN", Stage(42).String())
}
