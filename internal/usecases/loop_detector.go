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
	// loopSimilarityThreshold is the Jaccard score above which two replies
	// count as "the same thing said again".
	loopSimilarityThreshold = 0.8

	// loopWindow is how many past bot replies are compared.
	loopWindow = 3

	// loopMatchesNeeded is how many of those comparisons must exceed the
	// threshold to flag a loop.
	loopMatchesNeeded = 2
)

// LoopDetector flags conversations where the bot keeps producing the same
// reply. Similarity is lexical (word-set Jaccard), not semantic; paraphrased
// repetition slips through. That is an accepted limitation of the heuristic.
type LoopDetector struct {
	events interfaces.EscalationStore
	logger *slog.Logger
}

func NewLoopDetector(events interfaces.EscalationStore, logger *slog.Logger) *LoopDetector {
	return &LoopDetector{events: events, logger: logger}
}

// CheckForLoop compares the candidate outgoing reply against the last bot
// replies. On a flag it increments the conversation's loop counter and
// appends a loop_detected audit event; the caller runs the escalation
// state machine afterwards.
func (d *LoopDetector) CheckForLoop(ctx context.Context, conv *entities.Conversation, candidateReply string) bool {
	if !IsLooping(conv.LastBotReplies(loopWindow), candidateReply) {
		conv.ConsecutiveSimilarResponses = 0
		return false
	}

	conv.LoopCounter++
	conv.ConsecutiveSimilarResponses++
	d.logger.Warn("conversation loop detected",
		"conversation", conv.ID, "loop_counter", conv.LoopCounter)

	event := entities.EscalationEvent{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Reason:         entities.EscalationLoopDetected,
		CreatedAt:      time.Now(),
	}
	if err := d.events.Append(ctx, event); err != nil {
		d.logger.Error("failed to record loop event", "err", err)
	}
	return true
}

// IsLooping reports whether the candidate reply is near-identical to at
// least loopMatchesNeeded of the given past replies.
func IsLooping(pastReplies []string, candidate string) bool {
	matches := 0
	for _, reply := range pastReplies {
		if Jaccard(reply, candidate) > loopSimilarityThreshold {
			matches++
		}
	}
	return matches >= loopMatchesNeeded
}

// Jaccard computes |intersection| / |union| over lowercase
// whitespace-tokenized word sets. Two empty texts score 1.
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}
