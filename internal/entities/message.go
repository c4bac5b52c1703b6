package entities

import "time"

// InboundMessage is one message delivered by the channel webhook.
// Immutable once persisted; ExternalID is the dedup key.
type InboundMessage struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"external_id"`
	Sender       string    `json:"sender"`        // patient WhatsApp id (phone)
	DisplayPhone string    `json:"display_phone"` // clinic number the message arrived on
	Body         string    `json:"body"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Turn is one entry of a conversation history window.
type Turn struct {
	Role    string    `json:"role"` // "user" or "bot"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// PromptMessage is one turn of a Completion Service request.
type PromptMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}
