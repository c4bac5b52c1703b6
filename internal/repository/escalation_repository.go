package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"zapclinic/internal/entities"
)

// EscalationRepository persists the append-only escalation audit trail.
type EscalationRepository struct {
	db *pgxpool.Pool
}

func NewEscalationRepository(db *pgxpool.Pool) *EscalationRepository {
	return &EscalationRepository{db: db}
}

func (r *EscalationRepository) Append(ctx context.Context, event entities.EscalationEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO escalation_events (id, conversation_id, reason, created_at)
		VALUES ($1, $2, $3, $4)
	`, event.ID, event.ConversationID, event.Reason, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append escalation event: %w", err)
	}
	return nil
}

// Recent returns the newest audit entries, newest first.
func (r *EscalationRepository) Recent(ctx context.Context, limit int) ([]entities.EscalationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, reason, created_at
		FROM escalation_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list escalation events: %w", err)
	}
	defer rows.Close()

	events := []entities.EscalationEvent{}
	for rows.Next() {
		var ev entities.EscalationEvent
		if err := rows.Scan(&ev.ID, &ev.ConversationID, &ev.Reason, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
