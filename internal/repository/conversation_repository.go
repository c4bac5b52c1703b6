package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapclinic/internal/entities"
)

// ConversationRepository is the conversation state store. Save is a
// full-state upsert; the load/mutate/save cycle is not transactional across
// the pipeline, so concurrent messages for one sender can overwrite each
// other's counter increments (accepted: the counters are heuristics).
type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Load fetches the conversation for (sender, channel number), synthesizing a
// fresh one with zeroed counters for an unknown sender.
func (r *ConversationRepository) Load(ctx context.Context, senderID, channelNumber string) (*entities.Conversation, error) {
	var (
		conv        entities.Conversation
		historyJSON []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, history, loop_counter, consecutive_similar, escalated,
		       COALESCE(escalation_reason, ''), escalated_at, created_at, updated_at
		FROM conversations
		WHERE sender_id = $1 AND channel_number = $2
	`, senderID, channelNumber).Scan(
		&conv.ID, &historyJSON, &conv.LoopCounter, &conv.ConsecutiveSimilarResponses,
		&conv.Escalated, &conv.EscalationReason, &conv.EscalatedAt, &conv.CreatedAt, &conv.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		now := time.Now()
		return &entities.Conversation{
			ID:            uuid.NewString(),
			SenderID:      senderID,
			ChannelNumber: channelNumber,
			History:       []entities.Turn{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	conv.SenderID = senderID
	conv.ChannelNumber = channelNumber
	if err := json.Unmarshal(historyJSON, &conv.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &conv, nil
}

// Save upserts the full conversation state.
func (r *ConversationRepository) Save(ctx context.Context, conv *entities.Conversation) error {
	historyJSON, err := json.Marshal(conv.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO conversations
			(sender_id, channel_number, id, history, loop_counter, consecutive_similar,
			 escalated, escalation_reason, escalated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, NOW())
		ON CONFLICT (sender_id, channel_number) DO UPDATE SET
			history = EXCLUDED.history,
			loop_counter = EXCLUDED.loop_counter,
			consecutive_similar = EXCLUDED.consecutive_similar,
			escalated = EXCLUDED.escalated,
			escalation_reason = EXCLUDED.escalation_reason,
			escalated_at = EXCLUDED.escalated_at,
			updated_at = NOW()
	`, conv.SenderID, conv.ChannelNumber, conv.ID, historyJSON, conv.LoopCounter,
		conv.ConsecutiveSimilarResponses, conv.Escalated, conv.EscalationReason,
		conv.EscalatedAt, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Release clears the escalated flag. Called from the ops API only: the
// pipeline itself never de-escalates.
func (r *ConversationRepository) Release(ctx context.Context, senderID, channelNumber string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET escalated = FALSE, escalation_reason = NULL, escalated_at = NULL,
		    loop_counter = 0, consecutive_similar = 0, updated_at = NOW()
		WHERE sender_id = $1 AND channel_number = $2
	`, senderID, channelNumber)
	if err != nil {
		return fmt.Errorf("release conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListEscalated returns conversations currently waiting on a human.
func (r *ConversationRepository) ListEscalated(ctx context.Context) ([]entities.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sender_id, channel_number, id, loop_counter, consecutive_similar,
		       COALESCE(escalation_reason, ''), escalated_at, created_at, updated_at
		FROM conversations
		WHERE escalated
		ORDER BY escalated_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list escalated: %w", err)
	}
	defer rows.Close()

	convs := []entities.Conversation{}
	for rows.Next() {
		var conv entities.Conversation
		if err := rows.Scan(&conv.SenderID, &conv.ChannelNumber, &conv.ID, &conv.LoopCounter,
			&conv.ConsecutiveSimilarResponses, &conv.EscalationReason, &conv.EscalatedAt,
			&conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conv.Escalated = true
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}
