package entities

import "time"

// Escalation trigger reasons recorded in the audit trail.
const (
	EscalationHumanRequest  = "human_request"
	EscalationLowConfidence = "low_confidence"
	EscalationLoopDetected  = "loop_detected"
	EscalationFrustration   = "frustration"
)

// EscalationEvent is one append-only audit trail entry.
type EscalationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}
