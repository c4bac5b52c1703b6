package entities

import "time"

const (
	RoleUser = "user"
	RoleBot  = "bot"

	// HistoryWindow bounds the rolling history kept per conversation.
	// Older turns are dropped, not summarized.
	HistoryWindow = 20
)

// Conversation holds the rolling state of one patient/clinic-number pair.
// Created on the first inbound message, never deleted, only updated.
type Conversation struct {
	ID                          string     `json:"id"`
	SenderID                    string     `json:"sender_id"`
	ChannelNumber               string     `json:"channel_number"`
	History                     []Turn     `json:"history"`
	LoopCounter                 int        `json:"loop_counter"`
	ConsecutiveSimilarResponses int        `json:"consecutive_similar_responses"`
	Escalated                   bool       `json:"escalated"`
	EscalationReason            string     `json:"escalation_reason,omitempty"`
	EscalatedAt                 *time.Time `json:"escalated_at,omitempty"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

// AppendTurn adds a turn and trims the history to the rolling window.
func (c *Conversation) AppendTurn(role, content string, at time.Time) {
	c.History = append(c.History, Turn{Role: role, Content: content, At: at})
	if len(c.History) > HistoryWindow {
		c.History = c.History[len(c.History)-HistoryWindow:]
	}
}

// LastBotReplies returns up to n most recent bot turns, newest last.
func (c *Conversation) LastBotReplies(n int) []string {
	replies := []string{}
	for _, t := range c.History {
		if t.Role == RoleBot {
			replies = append(replies, t.Content)
		}
	}
	if len(replies) > n {
		replies = replies[len(replies)-n:]
	}
	return replies
}

// LastUserMessages returns up to n most recent user turns, newest last.
func (c *Conversation) LastUserMessages(n int) []string {
	msgs := []string{}
	for _, t := range c.History {
		if t.Role == RoleUser {
			msgs = append(msgs, t.Content)
		}
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}
