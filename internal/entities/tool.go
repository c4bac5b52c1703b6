package entities

// ToolCall is one requested invocation against the Scheduling Service.
type ToolCall struct {
	ToolName   string            `json:"tool_name"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ToolResult is the audit-logged outcome of a ToolCall. Message is
// user-facing: on validation failure it asks for the missing data.
type ToolResult struct {
	ToolName   string         `json:"tool_name"`
	Success    bool           `json:"success"`
	ResultData map[string]any `json:"result_data,omitempty"`
	Message    string         `json:"message"`
}

// Appointment mirrors the Scheduling Service calendar entry.
// Date is an ISO calendar date; Start/End are "HH:MM".
type Appointment struct {
	ID          string `json:"id"`
	PatientName string `json:"patient_name"`
	Phone       string `json:"phone"`
	Service     string `json:"service"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
}
