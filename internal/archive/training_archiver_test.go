package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingArchiver_Archive_BookingCompleted(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)
	ta := NewTrainingArchiver(store, nil)
	require.NotNil(t, ta)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ta.Archive(context.Background(), TrainingArchiveInput{
		ConversationID:   "conv-1",
		TenantID:         42,
		Channel:          "voice",
		Contact:          "+15551234567",
		Outcome:          "CONFIRMED",
		BookingCompleted: true,
		Messages: []Message{
			{Role: "user", Content: "I'd like to book a cleaning", Timestamp: now},
			{Role: "assistant", Content: "You're booked for Tuesday at 2pm", Timestamp: now.Add(30 * time.Second)},
		},
	})

	require.Len(t, mock.putCalls, 2)
	var decoded ConversationRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &decoded))
	assert.Equal(t, "conv-1", decoded.ConversationID)
	assert.Equal(t, int64(42), decoded.TenantID)
	assert.Equal(t, "booking_completed", decoded.Labels.ConversationCategory)
	assert.True(t, decoded.Labels.AutoLabeled)
	assert.Equal(t, 30, decoded.DurationSeconds)
}

func TestTrainingArchiver_Archive_Emergency(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)
	ta := NewTrainingArchiver(store, nil)

	ta.Archive(context.Background(), TrainingArchiveInput{
		ConversationID:    "conv-2",
		Outcome:           "EMERGENCY",
		EmergencyCategory: "allergic_reaction",
		Messages: []Message{
			{Role: "user", Content: "my face is swelling up", Timestamp: time.Now()},
		},
	})

	var decoded ConversationRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &decoded))
	assert.Equal(t, "emergency", decoded.Labels.ConversationCategory)
	assert.Equal(t, "allergic_reaction", decoded.Context.EmergencyCategory)
}

func TestTrainingArchiver_Archive_ScrubsPII(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)
	ta := NewTrainingArchiver(store, nil)

	ta.Archive(context.Background(), TrainingArchiveInput{
		ConversationID: "conv-3",
		Outcome:        "ABANDONED",
		Messages: []Message{
			{Role: "user", Content: "call me at 330-333-2654 or a@b.com", Timestamp: time.Now()},
		},
	})

	var decoded ConversationRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &decoded))
	assert.Contains(t, decoded.Messages[0].Content, "[PHONE]")
	assert.Contains(t, decoded.Messages[0].Content, "[EMAIL]")
}

func TestTrainingArchiver_NilWhenStoreDisabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	ta := NewTrainingArchiver(store, nil)
	assert.Nil(t, ta)
	ta.Archive(context.Background(), TrainingArchiveInput{}) // must not panic on nil receiver
}
