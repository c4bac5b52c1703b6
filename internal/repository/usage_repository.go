package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db *pgxpool.Pool
}

type DailyUsage struct {
	Date             time.Time `json:"date"`
	MessagesReceived int       `json:"messages_received"`
	MessagesSent     int       `json:"messages_sent"`
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// IncrementReceived increments messages_received for today
func (r *UsageRepository) IncrementReceived(ctx context.Context) error {
	today := time.Now().Format("2006-01-02")
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (date, messages_received, messages_sent)
		VALUES ($1, 1, 0)
		ON CONFLICT (date)
		DO UPDATE SET messages_received = message_usage.messages_received + 1
	`, today)
	return err
}

// IncrementSent increments messages_sent for today
func (r *UsageRepository) IncrementSent(ctx context.Context) error {
	today := time.Now().Format("2006-01-02")
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (date, messages_received, messages_sent)
		VALUES ($1, 0, 1)
		ON CONFLICT (date)
		DO UPDATE SET messages_sent = message_usage.messages_sent + 1
	`, today)
	return err
}

// Recent returns the last n days of usage, newest first.
func (r *UsageRepository) Recent(ctx context.Context, days int) ([]DailyUsage, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := r.db.Query(ctx, `
		SELECT date, messages_received, messages_sent
		FROM message_usage
		ORDER BY date DESC
		LIMIT $1
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []DailyUsage{}
	for rows.Next() {
		var d DailyUsage
		if err := rows.Scan(&d.Date, &d.MessagesReceived, &d.MessagesSent); err != nil {
			return nil, err
		}
		usage = append(usage, d)
	}
	return usage, rows.Err()
}
