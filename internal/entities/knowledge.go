package entities

// KnowledgeChunk is one retrieved snippet of clinic knowledge.
// Produced per query, never persisted.
type KnowledgeChunk struct {
	Content        string            `json:"content"`
	Source         string            `json:"source"`
	RelevanceScore float64           `json:"relevance_score"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ClinicKnowledge is the schema-validated clinic record the retriever
// reads from. Parsed once at load time; typed accessors replace ad hoc
// field probing.
type ClinicKnowledge struct {
	Name        string      `yaml:"name" json:"name"`
	Address     string      `yaml:"address" json:"address"`
	Phone       string      `yaml:"phone" json:"phone"`
	Hours       []DayHours  `yaml:"hours" json:"hours"`
	Staff       []Staff     `yaml:"staff" json:"staff"`
	Services    []Service   `yaml:"services" json:"services"`
	Policies    []Policy    `yaml:"policies" json:"policies"`
	FAQs        []FAQ       `yaml:"faqs" json:"faqs"`
	SlotMinutes int         `yaml:"slot_minutes" json:"slot_minutes"`
}

// DayHours is the operating window of one weekday. Closed days are absent.
type DayHours struct {
	Day   string `yaml:"day" json:"day"`     // "segunda" .. "domingo"
	Open  string `yaml:"open" json:"open"`   // "08:00"
	Close string `yaml:"close" json:"close"` // "18:00"
}

type Staff struct {
	Name      string `yaml:"name" json:"name"`
	Role      string `yaml:"role" json:"role"`
	Specialty string `yaml:"specialty" json:"specialty"`
}

type Service struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Price       string `yaml:"price" json:"price"`
}

type Policy struct {
	Topic string `yaml:"topic" json:"topic"`
	Text  string `yaml:"text" json:"text"`
}

type FAQ struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// HoursFor returns the operating window for a weekday name, or false
// when the clinic is closed that day.
func (k *ClinicKnowledge) HoursFor(day string) (DayHours, bool) {
	for _, h := range k.Hours {
		if h.Day == day {
			return h, true
		}
	}
	return DayHours{}, false
}
