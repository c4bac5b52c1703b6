package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"zapclinic/internal/entities"
	"zapclinic/internal/interfaces"
)

// IntentClassifier maps raw text plus trailing history to a structured
// intent. Primary path asks the Completion Service for a JSON verdict; on
// transport failure or malformed output it falls back to a deterministic
// keyword heuristic that needs no network.
type IntentClassifier struct {
	completion interfaces.CompletionClient
	logger     *slog.Logger
}

func NewIntentClassifier(completion interfaces.CompletionClient, logger *slog.Logger) *IntentClassifier {
	return &IntentClassifier{completion: completion, logger: logger}
}

const classifierSystemPrompt = `Você é o classificador de intenções de um assistente de clínica no WhatsApp.
Responda APENAS com um objeto JSON: {"intent": "...", "confidence": 0.0-1.0, "entities": {...}, "reasoning": "..."}.
Intenções válidas: GREETING, APPOINTMENT_CREATE, APPOINTMENT_LIST, APPOINTMENT_CANCEL,
APPOINTMENT_AVAILABILITY, INFO_HOURS, INFO_LOCATION, INFO_SERVICES, INFO_STAFF,
INFO_PRICING, INFO_POLICY, INFO_GENERAL, HUMAN_HANDOFF, UNCLEAR.
Entities possíveis: date, time, service, appointment_id, patient_name.`

type classifierVerdict struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
	Reasoning  string            `json:"reasoning"`
}

// Classify returns the intent for message given the trailing history and
// the clinic name for context.
func (c *IntentClassifier) Classify(ctx context.Context, message string, history []entities.Turn, clinicName string) entities.Intent {
	prompt := []entities.PromptMessage{
		{Role: "system", Content: classifierSystemPrompt + "\nClínica: " + clinicName},
	}
	for _, t := range trailing(history, 6) {
		role := "user"
		if t.Role == entities.RoleBot {
			role = "assistant"
		}
		prompt = append(prompt, entities.PromptMessage{Role: role, Content: t.Content})
	}
	prompt = append(prompt, entities.PromptMessage{Role: "user", Content: message})

	raw, err := c.completion.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("classifier completion failed, using keyword fallback", "err", err)
		return ClassifyByKeywords(message)
	}

	intent, err := parseVerdict(raw)
	if err != nil {
		c.logger.Warn("classifier returned malformed verdict, using keyword fallback", "err", err)
		return ClassifyByKeywords(message)
	}
	return intent
}

func parseVerdict(raw string) (entities.Intent, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var v classifierVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return entities.Intent{}, fmt.Errorf("decode verdict: %w", err)
	}
	if !entities.KnownIntent(v.Intent) {
		return entities.Intent{}, fmt.Errorf("unknown intent %q", v.Intent)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	category := entities.IntentCategory(v.Intent)
	return entities.Intent{
		Name:           v.Intent,
		Confidence:     v.Confidence,
		Entities:       v.Entities,
		Category:       category,
		RequiresAction: category == entities.CategoryAppointment,
		Reasoning:      v.Reasoning,
	}, nil
}

var appointmentKeywords = []string{
	"marcar", "agendar", "agendamento", "remarcar", "desmarcar", "cancelar",
	"consulta", "retorno", "encaixe", "vaga", "disponibilidade", "horário livre",
}

var informationKeywords = []string{
	"horário", "funcionamento", "aberto", "fecha", "endereço", "onde fica",
	"localização", "preço", "valor", "quanto custa", "serviço", "exame",
	"convênio", "plano", "médico", "doutor", "doutora", "especialidade",
}

// ClassifyByKeywords is the deterministic, side-effect-free fallback used
// when the Completion Service is unavailable or returns garbage.
func ClassifyByKeywords(message string) entities.Intent {
	lower := strings.ToLower(message)

	for _, kw := range appointmentKeywords {
		if strings.Contains(lower, kw) {
			return entities.Intent{
				Name:           entities.IntentAppointmentCreate,
				Confidence:     0.6,
				Category:       entities.CategoryAppointment,
				RequiresAction: true,
			}
		}
	}

	for _, kw := range informationKeywords {
		if strings.Contains(lower, kw) {
			return entities.Intent{
				Name:       entities.IntentInfoGeneral,
				Confidence: 0.6,
				Category:   entities.CategoryInformation,
			}
		}
	}

	return entities.Intent{
		Name:       entities.IntentUnclear,
		Confidence: 0.3,
		Category:   entities.CategoryConversation,
	}
}

func trailing(history []entities.Turn, n int) []entities.Turn {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
