package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapclinic/internal/entities"
)

// PatientRepository resolves derived patient profiles for personalization.
type PatientRepository struct {
	db *pgxpool.Pool
}

func NewPatientRepository(db *pgxpool.Pool) *PatientRepository {
	return &PatientRepository{db: db}
}

// Load returns the profile for a sender. An unknown sender gets an empty
// new-patient profile; Returning is derived from prior stored messages.
func (r *PatientRepository) Load(ctx context.Context, senderID string) (*entities.PatientProfile, error) {
	profile := &entities.PatientProfile{SenderID: senderID}

	err := r.db.QueryRow(ctx, `
		SELECT name, pending_offer, last_seen_at
		FROM patients WHERE sender_id = $1
	`, senderID).Scan(&profile.Name, &profile.PendingOffer, &profile.LastSeenAt)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var prior int
	err = r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM messages WHERE sender = $1", senderID).Scan(&prior)
	if err != nil {
		return nil, fmt.Errorf("count prior messages: %w", err)
	}
	// The current message is already stored by the time the profile loads.
	profile.Returning = prior > 1

	return profile, nil
}

// Touch records that the patient was seen now, creating the row if needed.
func (r *PatientRepository) Touch(ctx context.Context, senderID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (sender_id, last_seen_at)
		VALUES ($1, $2)
		ON CONFLICT (sender_id) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
	`, senderID, time.Now())
	return err
}
