package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"zapclinic/internal/entities"
)

// In-memory port implementations shared by the usecase tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubCompletion answers both classifier and reply prompts through fn.
// A nil fn simulates the Completion Service being down.
type stubCompletion struct {
	mu    sync.Mutex
	fn    func(messages []entities.PromptMessage) (string, error)
	calls int
}

func (s *stubCompletion) Complete(_ context.Context, messages []entities.PromptMessage) (string, error) {
	s.mu.Lock()
	s.calls++
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return "", errors.New("completion service unavailable")
	}
	return fn(messages)
}

type memLimiter struct {
	deny bool
}

func (l *memLimiter) Allow(string, int, time.Duration) bool { return !l.deny }

func (l *memLimiter) Remaining(string, int, time.Duration) int {
	if l.deny {
		return 0
	}
	return 1
}

type memMessages struct {
	mu         sync.Mutex
	seen       map[string]int64
	next       int64
	failInsert bool
}

func (m *memMessages) InsertIfNotExists(_ context.Context, msg *entities.InboundMessage) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return false, 0, errors.New("database unavailable")
	}
	if m.seen == nil {
		m.seen = map[string]int64{}
	}
	if id, ok := m.seen[msg.ExternalID]; ok {
		return false, id, nil
	}
	m.next++
	m.seen[msg.ExternalID] = m.next
	return true, m.next, nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

type memConversations struct {
	mu    sync.Mutex
	convs map[string]*entities.Conversation
	saves int
}

func convKey(sender, channel string) string { return sender + "|" + channel }

func (m *memConversations) Load(_ context.Context, senderID, channelNumber string) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.convs[convKey(senderID, channelNumber)]; ok {
		return copyConv(stored), nil
	}
	now := time.Now()
	return &entities.Conversation{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		ChannelNumber: channelNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (m *memConversations) Save(_ context.Context, conv *entities.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.convs == nil {
		m.convs = map[string]*entities.Conversation{}
	}
	m.convs[convKey(conv.SenderID, conv.ChannelNumber)] = copyConv(conv)
	m.saves++
	return nil
}

func (m *memConversations) put(conv *entities.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.convs == nil {
		m.convs = map[string]*entities.Conversation{}
	}
	m.convs[convKey(conv.SenderID, conv.ChannelNumber)] = copyConv(conv)
}

func (m *memConversations) get(sender, channel string) *entities.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.convs[convKey(sender, channel)]
	if !ok {
		return nil
	}
	return copyConv(stored)
}

func copyConv(c *entities.Conversation) *entities.Conversation {
	dup := *c
	dup.History = append([]entities.Turn(nil), c.History...)
	return &dup
}

type memEvents struct {
	mu     sync.Mutex
	events []entities.EscalationEvent
}

func (m *memEvents) Append(_ context.Context, event entities.EscalationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memEvents) reasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for _, e := range m.events {
		out = append(out, e.Reason)
	}
	return out
}

type memProfiles struct {
	mu      sync.Mutex
	profile *entities.PatientProfile
	touches int
}

func (m *memProfiles) Load(_ context.Context, _ string) (*entities.PatientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile, nil
}

func (m *memProfiles) Touch(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	return nil
}

type sentMessage struct {
	to   string
	text string
}

type memGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (g *memGateway) Send(_ context.Context, to, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return "", errors.New("gateway unreachable")
	}
	g.sent = append(g.sent, sentMessage{to: to, text: text})
	return fmt.Sprintf("wamid.out.%d", len(g.sent)), nil
}

func (g *memGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *memGateway) last() sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return sentMessage{}
	}
	return g.sent[len(g.sent)-1]
}

type memUsage struct {
	mu       sync.Mutex
	received int
	sent     int
}

func (u *memUsage) IncrementReceived(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.received++
	return nil
}

func (u *memUsage) IncrementSent(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sent++
	return nil
}

type memKnowledge struct {
	clinic *entities.ClinicKnowledge
	err    error
}

func (k *memKnowledge) Clinic(context.Context) (*entities.ClinicKnowledge, error) {
	if k.err != nil {
		return nil, k.err
	}
	return k.clinic, nil
}

type memScheduling struct {
	mu           sync.Mutex
	appointments []entities.Appointment
	created      []entities.Appointment
	deleted      []string
	listCalls    int
	fail         bool
}

func (s *memScheduling) CreateAppointment(_ context.Context, appt entities.Appointment) (*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("scheduling service down")
	}
	appt.ID = fmt.Sprintf("appt-%d", len(s.created)+1)
	s.created = append(s.created, appt)
	return &appt, nil
}

func (s *memScheduling) ListAppointments(context.Context, string) ([]entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.fail {
		return nil, errors.New("scheduling service down")
	}
	return append([]entities.Appointment(nil), s.appointments...), nil
}

func (s *memScheduling) DeleteAppointment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("scheduling service down")
	}
	s.deleted = append(s.deleted, id)
	return nil
}

// testClinic is the knowledge record the fixtures share.
func testClinic() *entities.ClinicKnowledge {
	return &entities.ClinicKnowledge{
		Name:    "Clínica Boa Vista",
		Address: "Rua das Flores, 120, Centro, São Paulo - SP",
		Phone:   "(11) 4002-8922",
		Hours: []entities.DayHours{
			{Day: "segunda", Open: "08:00", Close: "18:00"},
			{Day: "terça", Open: "08:00", Close: "18:00"},
			{Day: "quarta", Open: "08:00", Close: "18:00"},
			{Day: "sábado", Open: "08:00", Close: "12:00"},
		},
		Staff: []entities.Staff{
			{Name: "Dra. Helena Castro", Role: "Médica", Specialty: "Clínica geral"},
			{Name: "Dr. Rafael Lima", Role: "Médico", Specialty: "Cardiologia"},
		},
		Services: []entities.Service{
			{Name: "Consulta geral", Description: "Atendimento com clínico geral", Price: "R$ 250,00"},
			{Name: "Avaliação cardiológica", Description: "Consulta com cardiologista", Price: "R$ 380,00"},
			{Name: "Exame de sangue", Price: "R$ 90,00"},
			{Name: "Fisioterapia", Description: "Sessão individual", Price: "R$ 150,00"},
		},
		Policies: []entities.Policy{
			{Topic: "agendamento", Text: "Consultas podem ser remarcadas com até 24 horas de antecedência."},
			{Topic: "convênios", Text: "Aceitamos os convênios Unimed e Bradesco Saúde."},
		},
		FAQs: []entities.FAQ{
			{Question: "Vocês aceitam convênio?", Answer: "Sim, aceitamos Unimed e Bradesco Saúde."},
			{Question: "Precisa de pedido médico para exame de sangue?", Answer: "Sim, traga o pedido médico no dia do exame."},
		},
		SlotMinutes: 30,
	}
}
