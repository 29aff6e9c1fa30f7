package archive

import "time"

// ConversationRecord is the top-level structure archived to S3 once a
// conversation reaches a terminal FSM state (spec.md §4.8), for audit and
// training-data purposes.
type ConversationRecord struct {
	Version         string              `json:"version"` // "1.0"
	ConversationID  string              `json:"conversation_id"`
	TenantID        int64               `json:"tenant_id"`
	Channel         string              `json:"channel"`
	ContactHash     string              `json:"contact_hash"` // sha256 of the caller's contact value
	ArchivedAt      time.Time           `json:"archived_at"`
	DurationSeconds int                 `json:"duration_seconds"`
	MessageCount    int                 `json:"message_count"`
	Outcome         string              `json:"outcome"` // final FSM state, e.g. "CONFIRMED"
	Labels          Labels              `json:"labels"`
	Context         ConversationContext `json:"context"`
	Messages        []Message           `json:"messages"`
}

// Labels holds classification results for archive curation. Rule-based
// (internal/triage's category plus the final FSM state), never an LLM
// call — see DESIGN.md for why Bedrock-backed auto-labeling was dropped.
type Labels struct {
	TriageCategory       string `json:"triage_category,omitempty"` // internal/triage.Category, if an emergency/caution fired
	ConversationCategory string `json:"conversation_category"`     // booking_completed|cancelled|modified|transferred|emergency|abandoned
	ContainsPII          bool   `json:"contains_pii"`
	AutoLabeled          bool   `json:"auto_labeled"`
	HumanReviewed        bool   `json:"human_reviewed"`
}

// ConversationContext captures booking-specific context for the archive.
type ConversationContext struct {
	Motif              string `json:"motif,omitempty"`
	Preference         string `json:"preference,omitempty"`
	ContactKind        string `json:"contact_kind,omitempty"`
	BookingCompleted   bool   `json:"booking_completed"`
	TransferredToHuman bool   `json:"transferred_to_human"`
	EmergencyCategory  string `json:"emergency_category,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	ConversationID string `json:"conversation_id"`
	S3Key          string `json:"s3_key"`
	Category       string `json:"category"`
	TriageCategory string `json:"triage_category,omitempty"`
	ArchivedAt     string `json:"archived_at"`
	MessageCount   int    `json:"message_count"`
	Outcome        string `json:"outcome"`
}
