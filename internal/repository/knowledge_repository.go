package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"zapclinic/internal/entities"
)

// KnowledgeRepository stores the structured clinic record and serves it to
// the retriever from an in-process cache. The record is parsed and
// schema-validated once per load; invalidation is manual (ops API).
type KnowledgeRepository struct {
	db *pgxpool.Pool

	mu     sync.RWMutex
	cached *entities.ClinicKnowledge
}

func NewKnowledgeRepository(db *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// SyncFromYAML loads the clinic record from a YAML file and upserts it into
// Postgres. Called at startup; a missing file leaves the stored record as is.
func (r *KnowledgeRepository) SyncFromYAML(filePath string) error {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read knowledge file: %w", err)
	}

	var knowledge entities.ClinicKnowledge
	if err := yaml.Unmarshal(raw, &knowledge); err != nil {
		return fmt.Errorf("failed to parse knowledge file: %w", err)
	}
	if err := validateKnowledge(&knowledge); err != nil {
		return fmt.Errorf("invalid knowledge file: %w", err)
	}

	doc, err := json.Marshal(knowledge)
	if err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}

	_, err = r.db.Exec(context.Background(), `
		INSERT INTO clinic_knowledge (id, doc, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, doc)
	if err != nil {
		return fmt.Errorf("store knowledge: %w", err)
	}

	r.mu.Lock()
	r.cached = &knowledge
	r.mu.Unlock()
	return nil
}

// Clinic returns the cached clinic record, loading and validating it from
// Postgres on a cold cache.
func (r *KnowledgeRepository) Clinic(ctx context.Context) (*entities.ClinicKnowledge, error) {
	r.mu.RLock()
	cached := r.cached
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	var doc []byte
	err := r.db.QueryRow(ctx, "SELECT doc FROM clinic_knowledge WHERE id = 1").Scan(&doc)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("clinic knowledge not loaded")
	}
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}

	var knowledge entities.ClinicKnowledge
	if err := json.Unmarshal(doc, &knowledge); err != nil {
		return nil, fmt.Errorf("decode knowledge: %w", err)
	}
	if err := validateKnowledge(&knowledge); err != nil {
		return nil, fmt.Errorf("stored knowledge invalid: %w", err)
	}

	r.mu.Lock()
	r.cached = &knowledge
	r.mu.Unlock()
	return &knowledge, nil
}

// Invalidate drops the cache so the next read hits Postgres.
func (r *KnowledgeRepository) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

var weekdays = map[string]bool{
	"segunda": true, "terça": true, "quarta": true, "quinta": true,
	"sexta": true, "sábado": true, "domingo": true,
}

func validateKnowledge(k *entities.ClinicKnowledge) error {
	if k.Name == "" {
		return fmt.Errorf("clinic name is required")
	}
	if k.SlotMinutes <= 0 {
		k.SlotMinutes = 30
	}
	for _, h := range k.Hours {
		if !weekdays[h.Day] {
			return fmt.Errorf("unknown weekday %q", h.Day)
		}
		for _, t := range []string{h.Open, h.Close} {
			if _, err := time.Parse("15:04", t); err != nil {
				return fmt.Errorf("bad time %q for %s: %w", t, h.Day, err)
			}
		}
	}
	return nil
}
