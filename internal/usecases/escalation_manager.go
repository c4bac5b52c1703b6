package usecases

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"zapclinic/internal/entities"
	"zapclinic/internal/interfaces"
)

const (
	// confidenceFloor below which the classifier clearly has no idea and a
	// human should take over.
	confidenceFloor = 0.3

	// loopCounterLimit is how many detected loops a conversation survives.
	loopCounterLimit = 3

	frustrationThreshold = 0.7
)

// EscalationManager owns the bot-vs-human state machine. Transitions to
// escalated happen here; the reverse transition is an external human action
// (ops API) the pipeline only observes.
type EscalationManager struct {
	events interfaces.EscalationStore
	logger *slog.Logger
}

func NewEscalationManager(events interfaces.EscalationStore, logger *slog.Logger) *EscalationManager {
	return &EscalationManager{events: events, logger: logger}
}

// ShouldEscalate evaluates all transition triggers for the current turn.
func (m *EscalationManager) ShouldEscalate(conv *entities.Conversation, intent entities.Intent) (string, bool) {
	if intent.Name == entities.IntentHumanHandoff {
		return entities.EscalationHumanRequest, true
	}
	if intent.Confidence < confidenceFloor {
		return entities.EscalationLowConfidence, true
	}
	if conv.LoopCounter > loopCounterLimit {
		return entities.EscalationLoopDetected, true
	}
	if FrustrationScore(conv.LastUserMessages(5)) >= frustrationThreshold {
		return entities.EscalationFrustration, true
	}
	return "", false
}

// Escalate latches the conversation to human ownership and records the
// audit event. The caller persists the conversation.
func (m *EscalationManager) Escalate(ctx context.Context, conv *entities.Conversation, reason string) error {
	if conv.Escalated {
		return nil
	}

	now := time.Now()
	conv.Escalated = true
	conv.EscalationReason = reason
	conv.EscalatedAt = &now

	m.logger.Info("conversation escalated to human",
		"conversation", conv.ID, "sender", conv.SenderID, "reason", reason)

	return m.events.Append(ctx, entities.EscalationEvent{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Reason:         reason,
		CreatedAt:      now,
	})
}

var frustrationWords = []string{
	"absurdo", "péssimo", "horrível", "ridículo", "reclamar", "reclamação",
	"ninguém responde", "não resolve", "nada resolve", "cansado", "cansada",
	"de novo", "já falei", "não entende", "não entendeu",
}

// FrustrationScore derives a 0..1 score from recent user messages: complaint
// vocabulary, stacked punctuation and shouting all push it up.
func FrustrationScore(messages []string) float64 {
	if len(messages) == 0 {
		return 0
	}

	score := 0.0
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, w := range frustrationWords {
			if strings.Contains(lower, w) {
				score += 0.3
				break
			}
		}
		if strings.Contains(msg, "!!") || strings.Contains(msg, "??") {
			score += 0.2
		}
		if isShouting(msg) {
			score += 0.2
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// isShouting reports mostly-uppercase messages of meaningful length.
func isShouting(msg string) bool {
	letters, upper := 0, 0
	for _, r := range msg {
		if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		} else if r >= 'a' && r <= 'z' {
			letters++
		}
	}
	return letters >= 8 && float64(upper)/float64(letters) > 0.7
}
