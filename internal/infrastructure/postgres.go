package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Inbound messages. The unique index on external_id is the correctness
	// backstop for idempotent ingestion: two concurrent deliveries of the
	// same webhook event can both pass the application-level read.
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			external_id VARCHAR(255) UNIQUE NOT NULL,
			sender VARCHAR(32) NOT NULL,
			display_phone VARCHAR(32) NOT NULL,
			body TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	// Conversation state, keyed by (sender, clinic number).
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			sender_id VARCHAR(32) NOT NULL,
			channel_number VARCHAR(32) NOT NULL,
			id UUID NOT NULL,
			history JSONB NOT NULL DEFAULT '[]',
			loop_counter INT NOT NULL DEFAULT 0,
			consecutive_similar INT NOT NULL DEFAULT 0,
			escalated BOOLEAN NOT NULL DEFAULT FALSE,
			escalation_reason TEXT,
			escalated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (sender_id, channel_number)
		);
	`)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	// Append-only escalation audit trail.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS escalation_events (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL,
			reason VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create escalation_events table: %w", err)
	}

	// Patient profiles feeding the personalizer.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS patients (
			sender_id VARCHAR(32) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			pending_offer VARCHAR(255) NOT NULL DEFAULT '',
			last_seen_at TIMESTAMPTZ
		);
	`)
	if err != nil {
		return fmt.Errorf("create patients table: %w", err)
	}

	// Clinic knowledge record, single row, schema-validated on load.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS clinic_knowledge (
			id INT PRIMARY KEY CHECK (id = 1),
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create clinic_knowledge table: %w", err)
	}

	// Operator accounts for the ops API.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS operators (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) DEFAULT 'operator',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create operators table: %w", err)
	}

	// Daily message counters surfaced on /api/stats.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS message_usage (
			date DATE PRIMARY KEY,
			messages_received INT NOT NULL DEFAULT 0,
			messages_sent INT NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("create message_usage table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
