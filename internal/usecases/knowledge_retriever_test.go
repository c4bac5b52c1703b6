package usecases

import (
	"context"
	"strings"
	"testing"

	"zapclinic/internal/entities"
)

func TestRetrieve_Hours(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{clinic: testClinic()})

	res, err := r.Retrieve(context.Background(), "qual o horário de funcionamento?", entities.IntentInfoHours, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Chunks) != 1 || res.Chunks[0].Source != "horario_funcionamento" {
		t.Fatalf("chunks = %+v, want one hours chunk", res.Chunks)
	}
	content := res.Chunks[0].Content
	for _, want := range []string{"segunda: 08:00 às 18:00", "sábado: 08:00 às 12:00"} {
		if !strings.Contains(content, want) {
			t.Errorf("hours chunk missing %q:\n%s", want, content)
		}
	}
	// Closed days are absent, so the prompt cannot invent them.
	if strings.Contains(content, "domingo") {
		t.Errorf("hours chunk lists a closed day:\n%s", content)
	}

	if !strings.Contains(res.AugmentedPrompt, "SOMENTE") {
		t.Error("augmented prompt missing the use-only-supplied instruction")
	}
	if !strings.Contains(res.AugmentedPrompt, "qual o horário de funcionamento?") {
		t.Error("augmented prompt missing the original query")
	}
	if !strings.Contains(res.AugmentedPrompt, "[1] (horario_funcionamento)") {
		t.Error("augmented prompt missing the numbered sourced chunk")
	}
}

func TestRetrieve_Location(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{clinic: testClinic()})

	res, err := r.Retrieve(context.Background(), "onde fica a clínica?", entities.IntentInfoLocation, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(res.Chunks))
	}
	if !strings.Contains(res.Chunks[0].Content, "Rua das Flores") {
		t.Errorf("location chunk = %q", res.Chunks[0].Content)
	}
	if !strings.Contains(res.Chunks[0].Content, "(11) 4002-8922") {
		t.Errorf("location chunk missing the phone: %q", res.Chunks[0].Content)
	}
}

func TestRetrieve_PricingPrefersNamedService(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{clinic: testClinic()})

	params := map[string]string{"service": "cardiológica"}
	res, err := r.Retrieve(context.Background(), "quanto custa?", entities.IntentInfoPricing, params, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) == 0 {
		t.Fatal("expected pricing chunks")
	}
	if !strings.Contains(res.Chunks[0].Content, "Avaliação cardiológica") {
		t.Errorf("top chunk = %q, want the asked service first", res.Chunks[0].Content)
	}
	if !strings.Contains(res.Chunks[0].Content, "R$ 380,00") {
		t.Errorf("top chunk missing the price: %q", res.Chunks[0].Content)
	}
}

func TestRetrieve_TopKTruncates(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{clinic: testClinic()})

	// Four priced services in the fixture; ask for two.
	res, err := r.Retrieve(context.Background(), "valores", entities.IntentInfoPricing, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 2 {
		t.Errorf("got %d chunks, want topK 2", len(res.Chunks))
	}
	if len(res.Sources) != 2 {
		t.Errorf("got %d sources, want 2", len(res.Sources))
	}
}

func TestRetrieve_KeywordSearchOverFAQs(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{clinic: testClinic()})

	res, err := r.Retrieve(context.Background(), "vocês aceitam convênio", entities.IntentInfoGeneral, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) == 0 {
		t.Fatal("expected FAQ match for convênio")
	}
	if !strings.Contains(res.Chunks[0].Content, "Unimed") {
		t.Errorf("top chunk = %q, want the convênio answer", res.Chunks[0].Content)
	}
}

func TestRetrieve_NothingFound(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{clinic: testClinic()})

	res, err := r.Retrieve(context.Background(), "xyzabc qwerty", entities.IntentInfoGeneral, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 0 {
		t.Fatalf("chunks = %+v, want none", res.Chunks)
	}
	if !strings.Contains(res.AugmentedPrompt, "Nenhuma informação disponível") {
		t.Error("prompt should say the information is unavailable, not invent chunks")
	}
}

func TestRetrieve_KnowledgeUnavailable(t *testing.T) {
	r := NewKnowledgeRetriever(&memKnowledge{err: context.DeadlineExceeded})

	if _, err := r.Retrieve(context.Background(), "horários", entities.IntentInfoHours, nil, 0); err == nil {
		t.Error("expected error when the knowledge source is down")
	}
}
