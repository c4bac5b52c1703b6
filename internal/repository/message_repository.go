package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapclinic/internal/entities"
)

// MessageRepository is the idempotent ingress store for inbound messages.
type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// InsertIfNotExists inserts the message unless its external id was already
// stored. The existence check is an optimization; the unique index on
// external_id is what guarantees a single row when two deliveries race.
func (r *MessageRepository) InsertIfNotExists(ctx context.Context, msg *entities.InboundMessage) (bool, int64, error) {
	var existingID int64
	err := r.db.QueryRow(ctx,
		"SELECT id FROM messages WHERE external_id = $1", msg.ExternalID).Scan(&existingID)
	if err == nil {
		return false, existingID, nil
	}
	if err != pgx.ErrNoRows {
		return false, 0, fmt.Errorf("check external id: %w", err)
	}

	var id int64
	err = r.db.QueryRow(ctx, `
		INSERT INTO messages (external_id, sender, display_phone, body, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id
	`, msg.ExternalID, msg.Sender, msg.DisplayPhone, msg.Body, msg.ReceivedAt).Scan(&id)

	if err == pgx.ErrNoRows {
		// Lost the race: another delivery inserted between our check and insert.
		err = r.db.QueryRow(ctx,
			"SELECT id FROM messages WHERE external_id = $1", msg.ExternalID).Scan(&existingID)
		if err != nil {
			return false, 0, fmt.Errorf("resolve conflicting insert: %w", err)
		}
		return false, existingID, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("insert message: %w", err)
	}

	msg.ID = id
	return true, id, nil
}
