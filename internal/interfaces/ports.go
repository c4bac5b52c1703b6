package interfaces

import (
	"context"
	"time"

	"zapclinic/internal/entities"
)

// CompletionClient talks to the external large-language-model backend.
type CompletionClient interface {
	Complete(ctx context.Context, messages []entities.PromptMessage) (string, error)
}

// ChannelGateway delivers outbound text to the patient's messaging app.
type ChannelGateway interface {
	Send(ctx context.Context, to, text string) (externalID string, err error)
}

// SchedulingClient owns the appointment calendar. Dates are ISO calendar dates.
type SchedulingClient interface {
	CreateAppointment(ctx context.Context, appt entities.Appointment) (*entities.Appointment, error)
	ListAppointments(ctx context.Context, date string) ([]entities.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// MessageStore is the idempotent ingress store. InsertIfNotExists returns
// inserted=false with the existing row id when the external id was seen before.
type MessageStore interface {
	InsertIfNotExists(ctx context.Context, msg *entities.InboundMessage) (inserted bool, id int64, err error)
}

// ConversationStore loads and upserts conversation state. Load for an
// unknown sender returns a fresh conversation with zeroed counters.
type ConversationStore interface {
	Load(ctx context.Context, senderID, channelNumber string) (*entities.Conversation, error)
	Save(ctx context.Context, conv *entities.Conversation) error
}

// EscalationStore appends to the escalation audit trail.
type EscalationStore interface {
	Append(ctx context.Context, event entities.EscalationEvent) error
}

// ProfileStore resolves the derived patient profile for personalization.
type ProfileStore interface {
	Load(ctx context.Context, senderID string) (*entities.PatientProfile, error)
	Touch(ctx context.Context, senderID string) error
}

// UsageRecorder tracks daily message volume.
type UsageRecorder interface {
	IncrementReceived(ctx context.Context) error
	IncrementSent(ctx context.Context) error
}

// KnowledgeSource exposes the parsed clinic knowledge record.
type KnowledgeSource interface {
	Clinic(ctx context.Context) (*entities.ClinicKnowledge, error)
}

// RateLimiter guards ingestion throughput per sender key. Buckets for
// distinct keys are fully independent.
type RateLimiter interface {
	Allow(key string, capacity int, refillInterval time.Duration) bool
	Remaining(key string, capacity int, refillInterval time.Duration) int
}
