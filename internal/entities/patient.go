package entities

import "time"

// Communication styles detected from recent patient phrasing.
const (
	StyleFormal   = "formal"
	StyleInformal = "informal"
	StyleFriendly = "friendly"
)

// PatientProfile is the derived profile the personalizer reads.
// Returning is computed from prior message history; PendingOffer holds a
// cross-sell opportunity (e.g. a related exam not yet taken).
type PatientProfile struct {
	SenderID     string     `json:"sender_id"`
	Name         string     `json:"name"`
	Returning    bool       `json:"returning"`
	PendingOffer string     `json:"pending_offer,omitempty"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}
