package usecases

import (
	"context"
	"errors"
	"testing"

	"zapclinic/internal/entities"
)

func TestClassifyByKeywords_Appointment(t *testing.T) {
	inputs := []string{
		"quero marcar uma consulta",
		"Posso AGENDAR um retorno pra semana que vem?",
		"tem vaga amanhã de manhã?",
		"preciso desmarcar minha consulta",
	}
	for _, input := range inputs {
		intent := ClassifyByKeywords(input)
		if intent.Name != entities.IntentAppointmentCreate {
			t.Errorf("%q classified as %s, want APPOINTMENT_CREATE", input, intent.Name)
		}
		if intent.Confidence != 0.6 {
			t.Errorf("%q confidence = %v, want 0.6", input, intent.Confidence)
		}
		if !intent.RequiresAction {
			t.Errorf("%q should require action", input)
		}
	}
}

func TestClassifyByKeywords_Information(t *testing.T) {
	inputs := []string{
		"qual o endereço de vocês?",
		"quanto custa o exame de sangue",
		"vocês atendem pelo convênio Unimed?",
	}
	for _, input := range inputs {
		intent := ClassifyByKeywords(input)
		if intent.Name != entities.IntentInfoGeneral {
			t.Errorf("%q classified as %s, want INFO_GENERAL", input, intent.Name)
		}
		if intent.RequiresAction {
			t.Errorf("%q should not require action", input)
		}
	}
}

func TestClassifyByKeywords_Unclear(t *testing.T) {
	intent := ClassifyByKeywords("hmmmm ok")
	if intent.Name != entities.IntentUnclear {
		t.Fatalf("classified as %s, want UNCLEAR", intent.Name)
	}
	if intent.Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", intent.Confidence)
	}
}

func TestClassifyByKeywords_Deterministic(t *testing.T) {
	first := ClassifyByKeywords("quero marcar uma consulta")
	for i := 0; i < 50; i++ {
		again := ClassifyByKeywords("quero marcar uma consulta")
		if again.Name != first.Name || again.Confidence != first.Confidence {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestClassify_PrimaryVerdict(t *testing.T) {
	completion := &stubCompletion{fn: func([]entities.PromptMessage) (string, error) {
		// Models love wrapping JSON in fences.
		return "```json\n{\"intent\": \"INFO_HOURS\", \"confidence\": 0.92, \"entities\": {}, \"reasoning\": \"pergunta sobre horário\"}\n```", nil
	}}
	c := NewIntentClassifier(completion, testLogger())

	intent := c.Classify(context.Background(), "que horas vocês abrem?", nil, "Clínica Boa Vista")
	if intent.Name != entities.IntentInfoHours {
		t.Fatalf("intent = %s, want INFO_HOURS", intent.Name)
	}
	if intent.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", intent.Confidence)
	}
	if intent.RequiresAction {
		t.Error("information intent should not require action")
	}
	if intent.Category != entities.CategoryInformation {
		t.Errorf("category = %s, want information", intent.Category)
	}
}

func TestClassify_ClampsConfidence(t *testing.T) {
	completion := &stubCompletion{fn: func([]entities.PromptMessage) (string, error) {
		return `{"intent": "GREETING", "confidence": 1.4, "entities": {}}`, nil
	}}
	c := NewIntentClassifier(completion, testLogger())

	intent := c.Classify(context.Background(), "oi", nil, "")
	if intent.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", intent.Confidence)
	}
}

func TestClassify_MalformedVerdictFallsBack(t *testing.T) {
	completion := &stubCompletion{fn: func([]entities.PromptMessage) (string, error) {
		return "não consigo responder em JSON, desculpe", nil
	}}
	c := NewIntentClassifier(completion, testLogger())

	intent := c.Classify(context.Background(), "quero marcar uma consulta", nil, "")
	if intent.Name != entities.IntentAppointmentCreate {
		t.Fatalf("fallback intent = %s, want APPOINTMENT_CREATE", intent.Name)
	}
	if intent.Confidence != 0.6 {
		t.Errorf("fallback confidence = %v, want 0.6", intent.Confidence)
	}
}

func TestClassify_UnknownIntentFallsBack(t *testing.T) {
	completion := &stubCompletion{fn: func([]entities.PromptMessage) (string, error) {
		return `{"intent": "MAKE_COFFEE", "confidence": 0.9, "entities": {}}`, nil
	}}
	c := NewIntentClassifier(completion, testLogger())

	intent := c.Classify(context.Background(), "qual o endereço?", nil, "")
	if intent.Name != entities.IntentInfoGeneral {
		t.Fatalf("fallback intent = %s, want INFO_GENERAL", intent.Name)
	}
}

func TestClassify_TransportErrorFallsBack(t *testing.T) {
	completion := &stubCompletion{fn: func([]entities.PromptMessage) (string, error) {
		return "", errors.New("connection refused")
	}}
	c := NewIntentClassifier(completion, testLogger())

	intent := c.Classify(context.Background(), "blablabla", nil, "")
	if intent.Name != entities.IntentUnclear {
		t.Fatalf("fallback intent = %s, want UNCLEAR", intent.Name)
	}
}

func TestClassify_SendsTrailingHistory(t *testing.T) {
	var captured []entities.PromptMessage
	completion := &stubCompletion{fn: func(messages []entities.PromptMessage) (string, error) {
		captured = messages
		return `{"intent": "GREETING", "confidence": 0.9, "entities": {}}`, nil
	}}
	c := NewIntentClassifier(completion, testLogger())

	history := make([]entities.Turn, 0, 10)
	for i := 0; i < 10; i++ {
		role := entities.RoleUser
		if i%2 == 1 {
			role = entities.RoleBot
		}
		history = append(history, entities.Turn{Role: role, Content: "turno"})
	}
	c.Classify(context.Background(), "oi", history, "Clínica Boa Vista")

	// system + 6 trailing turns + the current message.
	if len(captured) != 8 {
		t.Fatalf("prompt has %d messages, want 8", len(captured))
	}
	if captured[0].Role != "system" {
		t.Errorf("first message role = %s, want system", captured[0].Role)
	}
	if captured[len(captured)-1].Content != "oi" {
		t.Errorf("last message = %q, want the current text", captured[len(captured)-1].Content)
	}
}
