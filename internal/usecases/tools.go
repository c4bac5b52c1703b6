package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zapclinic/internal/entities"
	"zapclinic/internal/interfaces"
)

// Tool is one action the pipeline can take against the Scheduling Service.
// Validate reports missing required parameters; Execute assumes they passed.
type Tool interface {
	Name() string
	Validate(params map[string]string) error
	Execute(ctx context.Context, params map[string]string) (*entities.ToolResult, error)
}

// ExecutionResult is what the orchestrator gets back from a tool pass.
type ExecutionResult struct {
	ReplyText string
	ToolsUsed []string
	Results   []entities.ToolResult
}

// ToolExecutor routes actionable intents through the tool registry.
type ToolExecutor struct {
	registry map[string]Tool
}

// NewToolExecutor builds the registry. Adding a tool is a data change here,
// not a code change anywhere else.
func NewToolExecutor(scheduling interfaces.SchedulingClient, knowledge interfaces.KnowledgeSource) *ToolExecutor {
	tools := []Tool{
		&createAppointmentTool{scheduling: scheduling},
		&listAppointmentsTool{scheduling: scheduling},
		&cancelAppointmentTool{scheduling: scheduling},
		&checkAvailabilityTool{scheduling: scheduling, knowledge: knowledge},
		&escalateToHumanTool{},
	}

	registry := make(map[string]Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}
	return &ToolExecutor{registry: registry}
}

// intentTools maps intent names to registry entries.
var intentTools = map[string]string{
	entities.IntentAppointmentCreate:       "create_appointment",
	entities.IntentAppointmentList:         "list_appointments",
	entities.IntentAppointmentCancel:       "cancel_appointment",
	entities.IntentAppointmentAvailability: "check_availability",
	entities.IntentHumanHandoff:            "escalate_to_human",
}

// Execute resolves the intent to a tool and runs it. Missing parameters
// come back as a clarifying question, never as a technical error; unknown
// intents return a no-op failure, never a silent success.
func (e *ToolExecutor) Execute(ctx context.Context, intent entities.Intent, conv *entities.Conversation) *ExecutionResult {
	toolName, ok := intentTools[intent.Name]
	if !ok {
		return &ExecutionResult{
			ReplyText: "Desculpe, não consigo realizar essa ação por aqui. Posso ajudar com agendamentos e informações da clínica.",
			Results: []entities.ToolResult{{
				ToolName: intent.Name,
				Success:  false,
				Message:  "no tool registered for intent",
			}},
		}
	}

	tool := e.registry[toolName]
	params := map[string]string{}
	for k, v := range intent.Entities {
		params[k] = v
	}
	if conv != nil {
		params["phone"] = conv.SenderID
	}

	if err := tool.Validate(params); err != nil {
		result := entities.ToolResult{
			ToolName: toolName,
			Success:  false,
			Message:  err.Error(),
		}
		return &ExecutionResult{
			ReplyText: result.Message,
			ToolsUsed: []string{toolName},
			Results:   []entities.ToolResult{result},
		}
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return &ExecutionResult{
			ReplyText: "Desculpe, não consegui acessar a agenda agora. Pode tentar novamente em instantes?",
			ToolsUsed: []string{toolName},
			Results: []entities.ToolResult{{
				ToolName: toolName,
				Success:  false,
				Message:  err.Error(),
			}},
		}
	}

	return &ExecutionResult{
		ReplyText: result.Message,
		ToolsUsed: []string{toolName},
		Results:   []entities.ToolResult{*result},
	}
}

// --- create_appointment ---

type createAppointmentTool struct {
	scheduling interfaces.SchedulingClient
}

func (t *createAppointmentTool) Name() string { return "create_appointment" }

func (t *createAppointmentTool) Validate(params map[string]string) error {
	missing := []string{}
	if params["date"] == "" {
		missing = append(missing, "a data")
	}
	if params["time"] == "" {
		missing = append(missing, "o horário")
	}
	if len(missing) > 0 {
		return fmt.Errorf("Para agendar sua consulta, preciso saber %s. Pode me informar?", strings.Join(missing, " e "))
	}
	if _, err := ParseBRDate(params["date"]); err != nil {
		return fmt.Errorf("Não entendi a data %q. Pode informar no formato dia/mês/ano, por exemplo 25/03/2026?", params["date"])
	}
	return nil
}

func (t *createAppointmentTool) Execute(ctx context.Context, params map[string]string) (*entities.ToolResult, error) {
	date, _ := ParseBRDate(params["date"])
	appt := entities.Appointment{
		PatientName: params["patient_name"],
		Phone:       params["phone"],
		Service:     params["service"],
		Date:        date,
		Start:       params["time"],
	}

	created, err := t.scheduling.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, err
	}

	return &entities.ToolResult{
		ToolName:   t.Name(),
		Success:    true,
		ResultData: map[string]any{"appointment_id": created.ID, "date": created.Date, "time": created.Start},
		Message:    fmt.Sprintf("✅ Consulta agendada para %s às %s. Até lá!", formatBRDate(created.Date), created.Start),
	}, nil
}

// --- list_appointments ---

type listAppointmentsTool struct {
	scheduling interfaces.SchedulingClient
}

func (t *listAppointmentsTool) Name() string { return "list_appointments" }

func (t *listAppointmentsTool) Validate(params map[string]string) error {
	if params["date"] != "" {
		if _, err := ParseBRDate(params["date"]); err != nil {
			return fmt.Errorf("Não entendi a data %q. Pode informar no formato dia/mês/ano?", params["date"])
		}
	}
	return nil
}

func (t *listAppointmentsTool) Execute(ctx context.Context, params map[string]string) (*entities.ToolResult, error) {
	date := ""
	if params["date"] != "" {
		date, _ = ParseBRDate(params["date"])
	}

	appts, err := t.scheduling.ListAppointments(ctx, date)
	if err != nil {
		return nil, err
	}

	// Patients only see their own bookings.
	mine := []entities.Appointment{}
	for _, a := range appts {
		if a.Phone == params["phone"] {
			mine = append(mine, a)
		}
	}

	if len(mine) == 0 {
		return &entities.ToolResult{
			ToolName: t.Name(),
			Success:  true,
			Message:  "Você não possui consultas agendadas no momento.",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("📅 Suas consultas:\n")
	for _, a := range mine {
		sb.WriteString(fmt.Sprintf("• %s às %s", formatBRDate(a.Date), a.Start))
		if a.Service != "" {
			sb.WriteString(" — " + a.Service)
		}
		sb.WriteString("\n")
	}
	return &entities.ToolResult{
		ToolName:   t.Name(),
		Success:    true,
		ResultData: map[string]any{"count": len(mine)},
		Message:    strings.TrimSpace(sb.String()),
	}, nil
}

// --- cancel_appointment ---

type cancelAppointmentTool struct {
	scheduling interfaces.SchedulingClient
}

func (t *cancelAppointmentTool) Name() string { return "cancel_appointment" }

func (t *cancelAppointmentTool) Validate(params map[string]string) error {
	if params["appointment_id"] == "" {
		return fmt.Errorf("Para cancelar, preciso saber qual consulta. Pode me dizer a data dela? Se preferir, digite \"minhas consultas\" para listar.")
	}
	return nil
}

func (t *cancelAppointmentTool) Execute(ctx context.Context, params map[string]string) (*entities.ToolResult, error) {
	if err := t.scheduling.DeleteAppointment(ctx, params["appointment_id"]); err != nil {
		return nil, err
	}
	return &entities.ToolResult{
		ToolName:   t.Name(),
		Success:    true,
		ResultData: map[string]any{"appointment_id": params["appointment_id"]},
		Message:    "Sua consulta foi cancelada. Quando quiser remarcar, é só me chamar.",
	}, nil
}

// --- check_availability ---

type checkAvailabilityTool struct {
	scheduling interfaces.SchedulingClient
	knowledge  interfaces.KnowledgeSource
}

func (t *checkAvailabilityTool) Name() string { return "check_availability" }

func (t *checkAvailabilityTool) Validate(params map[string]string) error {
	if params["date"] == "" {
		return fmt.Errorf("Para qual dia você gostaria de ver os horários livres?")
	}
	if _, err := ParseBRDate(params["date"]); err != nil {
		return fmt.Errorf("Não entendi a data %q. Pode informar no formato dia/mês/ano?", params["date"])
	}
	return nil
}

func (t *checkAvailabilityTool) Execute(ctx context.Context, params map[string]string) (*entities.ToolResult, error) {
	date, _ := ParseBRDate(params["date"])

	clinic, err := t.knowledge.Clinic(ctx)
	if err != nil {
		return nil, err
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	hours, open := clinic.HoursFor(weekdayName(day.Weekday()))
	if !open {
		return &entities.ToolResult{
			ToolName: t.Name(),
			Success:  true,
			Message:  fmt.Sprintf("A clínica não abre em %s. Quer ver outro dia?", formatBRDate(date)),
		}, nil
	}

	booked, err := t.scheduling.ListAppointments(ctx, date)
	if err != nil {
		return nil, err
	}

	slots, err := FreeSlots(hours.Open, hours.Close, clinic.SlotMinutes, booked)
	if err != nil {
		return nil, err
	}

	if len(slots) == 0 {
		return &entities.ToolResult{
			ToolName: t.Name(),
			Success:  true,
			Message:  fmt.Sprintf("Não há horários livres em %s. Quer ver outro dia?", formatBRDate(date)),
		}, nil
	}

	return &entities.ToolResult{
		ToolName:   t.Name(),
		Success:    true,
		ResultData: map[string]any{"date": date, "slots": slots},
		Message: fmt.Sprintf("🕐 Horários livres em %s:\n%s\n\nQual prefere?",
			formatBRDate(date), strings.Join(slots, ", ")),
	}, nil
}

// FreeSlots walks the operating window in fixed increments and drops any
// increment that overlaps an existing booking. Intervals are half-open: a
// slot is excluded when slotStart < bookingEnd && slotStart >= bookingStart.
func FreeSlots(open, close string, slotMinutes int, booked []entities.Appointment) ([]string, error) {
	start, err := time.Parse("15:04", open)
	if err != nil {
		return nil, fmt.Errorf("bad opening time %q: %w", open, err)
	}
	end, err := time.Parse("15:04", close)
	if err != nil {
		return nil, fmt.Errorf("bad closing time %q: %w", close, err)
	}
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	step := time.Duration(slotMinutes) * time.Minute

	type interval struct{ start, end time.Time }
	bookings := []interval{}
	for _, b := range booked {
		bs, err := time.Parse("15:04", b.Start)
		if err != nil {
			continue
		}
		be, err := time.Parse("15:04", b.End)
		if err != nil {
			be = bs.Add(step)
		}
		bookings = append(bookings, interval{bs, be})
	}

	slots := []string{}
	for slot := start; slot.Add(step).Before(end) || slot.Add(step).Equal(end); slot = slot.Add(step) {
		taken := false
		for _, b := range bookings {
			if slot.Before(b.end) && !slot.Before(b.start) {
				taken = true
				break
			}
		}
		if !taken {
			slots = append(slots, slot.Format("15:04"))
		}
	}
	return slots, nil
}

// --- escalate_to_human ---

// escalateToHumanTool performs no remote call; the orchestrator reads the
// escalate flag from ResultData and runs the escalation state machine.
type escalateToHumanTool struct{}

func (t *escalateToHumanTool) Name() string { return "escalate_to_human" }

func (t *escalateToHumanTool) Validate(map[string]string) error { return nil }

func (t *escalateToHumanTool) Execute(_ context.Context, _ map[string]string) (*entities.ToolResult, error) {
	return &entities.ToolResult{
		ToolName:   t.Name(),
		Success:    true,
		ResultData: map[string]any{"escalate": true},
		Message:    "Claro! Vou transferir seu atendimento para nossa equipe.",
	}, nil
}

// --- date helpers ---

var brMonths = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "março": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

// ParseBRDate turns locale dates ("25/03/2026", "25/03", "25 de março") into
// an ISO calendar date. Day-less formats resolve within the current year.
func ParseBRDate(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))

	// Already ISO.
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d.Format("2006-01-02"), nil
	}

	for _, layout := range []string{"02/01/2006", "02-01-2006", "02/01/06"} {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format("2006-01-02"), nil
		}
	}

	now := time.Now()
	if d, err := time.Parse("02/01", raw); err == nil {
		return time.Date(now.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02"), nil
	}

	// "25 de março" / "25 de março de 2026"
	parts := strings.Split(raw, " de ")
	if len(parts) >= 2 {
		var day int
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &day); err == nil {
			if month, ok := brMonths[strings.TrimSpace(parts[1])]; ok && day >= 1 && day <= 31 {
				year := now.Year()
				if len(parts) >= 3 {
					fmt.Sscanf(strings.TrimSpace(parts[2]), "%d", &year)
				}
				return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), nil
			}
		}
	}

	return "", fmt.Errorf("unrecognized date %q", raw)
}

func formatBRDate(iso string) string {
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return d.Format("02/01/2006")
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "segunda",
	time.Tuesday:   "terça",
	time.Wednesday: "quarta",
	time.Thursday:  "quinta",
	time.Friday:    "sexta",
	time.Saturday:  "sábado",
	time.Sunday:    "domingo",
}

func weekdayName(d time.Weekday) string { return weekdayNames[d] }
