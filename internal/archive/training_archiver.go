package archive

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

// TrainingArchiver archives a finished conversation to S3 once the FSM
// reaches a terminal state (spec.md §4.8). Labeling is rule-based, derived
// from the terminal state and triage category reached during the turn —
// see DESIGN.md for why the teacher's LLM-based auto-labeling was dropped.
// Errors are logged but never returned: archival never blocks a reply.
type TrainingArchiver struct {
	store  *Store
	logger *slog.Logger
}

// NewTrainingArchiver creates a TrainingArchiver. Returns nil if store is not enabled.
func NewTrainingArchiver(store *Store, logger *slog.Logger) *TrainingArchiver {
	if store == nil || !store.Enabled() {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingArchiver{store: store, logger: logger}
}

// TrainingArchiveInput holds the data needed to archive a conversation.
type TrainingArchiveInput struct {
	ConversationID string
	TenantID       int64
	Channel        string
	Contact        string // raw phone/session id for hashing
	Messages       []Message
	Outcome        string // terminal fsm.State, e.g. "CONFIRMED", "TRANSFERRED", "EMERGENCY"
	TriageCategory string // internal/triage.Category, if an emergency/caution fired

	Motif              string
	Preference         string
	ContactKind        string
	BookingCompleted   bool
	TransferredToHuman bool
	EmergencyCategory  string
}

// Archive labels and archives a conversation for later review/training use.
func (ta *TrainingArchiver) Archive(ctx context.Context, input TrainingArchiveInput) {
	if ta == nil {
		return
	}

	ta.logger.Info("training archive: starting",
		"conversation_id", input.ConversationID,
		"message_count", len(input.Messages),
	)

	msgs := make([]Message, len(input.Messages))
	copy(msgs, input.Messages)
	ScrubMessages(msgs)

	labels := labelConversation(input)

	var durationSec int
	if len(msgs) >= 2 {
		first := msgs[0].Timestamp
		last := msgs[len(msgs)-1].Timestamp
		durationSec = int(last.Sub(first).Seconds())
	}

	record := &ConversationRecord{
		Version:         "1.0",
		ConversationID:  input.ConversationID,
		TenantID:        input.TenantID,
		Channel:         input.Channel,
		ContactHash:     hashContact(input.Contact),
		ArchivedAt:      time.Now().UTC(),
		DurationSeconds: durationSec,
		MessageCount:    len(msgs),
		Outcome:         input.Outcome,
		Labels:          labels,
		Context: ConversationContext{
			Motif:              input.Motif,
			Preference:         input.Preference,
			ContactKind:        input.ContactKind,
			BookingCompleted:   input.BookingCompleted,
			TransferredToHuman: input.TransferredToHuman,
			EmergencyCategory:  input.EmergencyCategory,
		},
		Messages: msgs,
	}

	if err := ta.store.ArchiveConversation(ctx, record); err != nil {
		ta.logger.Error("training archive: failed to archive",
			"error", err, "conversation_id", input.ConversationID)
		return
	}

	ta.logger.Info("training archive: completed",
		"conversation_id", input.ConversationID,
		"category", labels.ConversationCategory,
	)
}

// labelConversation derives an archive category from the terminal FSM
// state and the triage category reached, if any. No LLM call: this is a
// lookup over signals the engine has already computed for the turn.
func labelConversation(input TrainingArchiveInput) Labels {
	category := "abandoned"
	switch {
	case input.EmergencyCategory != "":
		category = "emergency"
	case input.TransferredToHuman:
		category = "transferred"
	case input.BookingCompleted:
		category = "booking_completed"
	case input.Outcome == "CANCELLED":
		category = "cancelled"
	case input.Outcome == "MODIFIED":
		category = "modified"
	}

	return Labels{
		TriageCategory:       input.TriageCategory,
		ConversationCategory: category,
		ContainsPII:          true, // contact info is always present; scrubbed above
		AutoLabeled:          true,
		HumanReviewed:        false,
	}
}

func hashContact(contact string) string {
	h := sha256.Sum256([]byte(contact))
	return fmt.Sprintf("%x", h)
}
