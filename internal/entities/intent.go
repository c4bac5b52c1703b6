package entities

// Intent categories.
const (
	CategoryAppointment  = "appointment"
	CategoryInformation  = "information"
	CategoryConversation = "conversation"
	CategorySupport      = "support"
)

// Intent names produced by the classifier.
const (
	IntentGreeting                = "GREETING"
	IntentAppointmentCreate       = "APPOINTMENT_CREATE"
	IntentAppointmentList         = "APPOINTMENT_LIST"
	IntentAppointmentCancel       = "APPOINTMENT_CANCEL"
	IntentAppointmentAvailability = "APPOINTMENT_AVAILABILITY"
	IntentInfoHours               = "INFO_HOURS"
	IntentInfoLocation            = "INFO_LOCATION"
	IntentInfoServices            = "INFO_SERVICES"
	IntentInfoStaff               = "INFO_STAFF"
	IntentInfoPricing             = "INFO_PRICING"
	IntentInfoPolicy              = "INFO_POLICY"
	IntentInfoGeneral             = "INFO_GENERAL"
	IntentHumanHandoff            = "HUMAN_HANDOFF"
	IntentUnclear                 = "UNCLEAR"
)

// Intent is the classification of one inbound message.
// Ephemeral: computed per message, kept only in logs.
type Intent struct {
	Name           string            `json:"name"`
	Confidence     float64           `json:"confidence"`
	Entities       map[string]string `json:"entities,omitempty"`
	Category       string            `json:"category"`
	RequiresAction bool              `json:"requires_action"`
	Reasoning      string            `json:"reasoning,omitempty"`
}

// IntentCategory maps an intent name to its category. Unknown names fall
// into the conversation category.
func IntentCategory(name string) string {
	switch name {
	case IntentAppointmentCreate, IntentAppointmentList, IntentAppointmentCancel, IntentAppointmentAvailability:
		return CategoryAppointment
	case IntentInfoHours, IntentInfoLocation, IntentInfoServices, IntentInfoStaff, IntentInfoPricing, IntentInfoPolicy, IntentInfoGeneral:
		return CategoryInformation
	case IntentHumanHandoff:
		return CategorySupport
	default:
		return CategoryConversation
	}
}

// KnownIntent reports whether the classifier recognizes the name.
func KnownIntent(name string) bool {
	switch name {
	case IntentGreeting, IntentAppointmentCreate, IntentAppointmentList, IntentAppointmentCancel,
		IntentAppointmentAvailability, IntentInfoHours, IntentInfoLocation, IntentInfoServices,
		IntentInfoStaff, IntentInfoPricing, IntentInfoPolicy, IntentInfoGeneral,
		IntentHumanHandoff, IntentUnclear:
		return true
	}
	return false
}
