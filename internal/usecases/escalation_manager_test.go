package usecases

import (
	"context"
	"math"
	"testing"
	"time"

	"zapclinic/internal/entities"
)

func TestShouldEscalate_HumanRequest(t *testing.T) {
	m := NewEscalationManager(&memEvents{}, testLogger())

	intent := entities.Intent{Name: entities.IntentHumanHandoff, Confidence: 0.95}
	reason, escalate := m.ShouldEscalate(&entities.Conversation{}, intent)
	if !escalate || reason != entities.EscalationHumanRequest {
		t.Errorf("got (%q, %v), want human_request", reason, escalate)
	}
}

func TestShouldEscalate_LowConfidence(t *testing.T) {
	m := NewEscalationManager(&memEvents{}, testLogger())

	intent := entities.Intent{Name: entities.IntentUnclear, Confidence: 0.1}
	reason, escalate := m.ShouldEscalate(&entities.Conversation{}, intent)
	if !escalate || reason != entities.EscalationLowConfidence {
		t.Errorf("got (%q, %v), want low_confidence", reason, escalate)
	}

	// Exactly at the floor stays with the bot.
	intent.Confidence = 0.3
	if _, escalate := m.ShouldEscalate(&entities.Conversation{}, intent); escalate {
		t.Error("confidence at the floor should not escalate")
	}
}

func TestShouldEscalate_LoopCounter(t *testing.T) {
	m := NewEscalationManager(&memEvents{}, testLogger())
	intent := entities.Intent{Name: entities.IntentInfoHours, Confidence: 0.9}

	if _, escalate := m.ShouldEscalate(&entities.Conversation{LoopCounter: 3}, intent); escalate {
		t.Error("loop counter at the limit should not escalate yet")
	}
	reason, escalate := m.ShouldEscalate(&entities.Conversation{LoopCounter: 4}, intent)
	if !escalate || reason != entities.EscalationLoopDetected {
		t.Errorf("got (%q, %v), want loop_detected", reason, escalate)
	}
}

func TestShouldEscalate_Frustration(t *testing.T) {
	m := NewEscalationManager(&memEvents{}, testLogger())
	intent := entities.Intent{Name: entities.IntentInfoGeneral, Confidence: 0.8}

	conv := &entities.Conversation{}
	now := time.Now()
	conv.AppendTurn(entities.RoleUser, "isso é um absurdo!!", now)
	conv.AppendTurn(entities.RoleBot, "desculpe pelo transtorno", now)
	conv.AppendTurn(entities.RoleUser, "já falei isso três vezes!!", now)

	reason, escalate := m.ShouldEscalate(conv, intent)
	if !escalate || reason != entities.EscalationFrustration {
		t.Errorf("got (%q, %v), want frustration", reason, escalate)
	}

	calm := &entities.Conversation{}
	calm.AppendTurn(entities.RoleUser, "bom dia, tudo bem?", now)
	if _, escalate := m.ShouldEscalate(calm, intent); escalate {
		t.Error("calm conversation should not escalate")
	}
}

func TestFrustrationScore(t *testing.T) {
	cases := []struct {
		name     string
		messages []string
		want     float64
	}{
		{"empty", nil, 0},
		{"calm", []string{"oi, tudo bem?"}, 0},
		{"complaint with punctuation", []string{"que atendimento péssimo!!"}, 0.5},
		{"shouting", []string{"PRECISO DE AJUDA AGORA"}, 0.2},
		{"capped at one", []string{
			"isso é um absurdo!!",
			"péssimo atendimento!!",
			"ninguém responde nada??",
		}, 1.0},
	}
	for _, tc := range cases {
		got := FrustrationScore(tc.messages)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: score = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEscalate_LatchesAndRecords(t *testing.T) {
	events := &memEvents{}
	m := NewEscalationManager(events, testLogger())

	conv := &entities.Conversation{ID: "conv-1", SenderID: "5511999999999"}
	if err := m.Escalate(context.Background(), conv, entities.EscalationHumanRequest); err != nil {
		t.Fatal(err)
	}

	if !conv.Escalated || conv.EscalationReason != entities.EscalationHumanRequest {
		t.Errorf("conversation not latched: %+v", conv)
	}
	if conv.EscalatedAt == nil {
		t.Error("EscalatedAt should be set")
	}

	// A second escalation is a no-op, not a second audit entry.
	if err := m.Escalate(context.Background(), conv, entities.EscalationFrustration); err != nil {
		t.Fatal(err)
	}
	if conv.EscalationReason != entities.EscalationHumanRequest {
		t.Error("reason should not be overwritten once latched")
	}
	if len(events.reasons()) != 1 {
		t.Errorf("recorded %d events, want 1", len(events.reasons()))
	}
}
