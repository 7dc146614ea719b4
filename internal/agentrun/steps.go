package agentrun

import "strings"

// StepType identifies a backend processing stage.
type StepType string

const (
	StepStart        StepType = "start"
	StepComplete     StepType = "complete"
	StepMasterAgent  StepType = "master_agent"
	StepExpertAgent  StepType = "expert_agent"
	StepEmailDrafter StepType = "email_drafter"
)

// Expert topics the master agent routes to.
var ExpertTopics = []string{
	"zuzahlung",
	"familienversicherung",
	"pflegeversicherung",
	"krankengeld",
	"kostenuebernahme",
	"widerspruch",
	"mutterschaft",
	"rehabilitation",
	"terminvermittlung",
	"sonstiges",
}

// ExpertStep returns the step type for an expert topic.
func ExpertStep(topic string) StepType {
	return StepType("expert_" + topic)
}

// StepInfo is the display metadata for a step type.
type StepInfo struct {
	Name    string
	Icon    string
	Message string
}

var catalogue = map[StepType]StepInfo{
	StepStart: {
		Name:    "Workflow gestartet",
		Icon:    "🚀",
		Message: "Agent Workflow wird initialisiert...",
	},
	StepMasterAgent: {
		Name:    "Master Agent",
		Icon:    "🎯",
		Message: "Analysiert Kundenanfrage und bestimmt zuständigen Experten-Agent...",
	},
	StepExpertAgent: {
		Name:    "Experten-Agent",
		Icon:    "🧠",
		Message: "Experten-Agent analysiert spezifische Anfrage und sammelt Informationen...",
	},
	StepEmailDrafter: {
		Name:    "E-Mail Verfasser",
		Icon:    "✉️",
		Message: "Erstellt professionelle, empathische E-Mail-Antwort basierend auf Expertenanalyse...",
	},
	StepComplete: {
		Name:    "Abgeschlossen",
		Icon:    "🏁",
		Message: "Agent Workflow erfolgreich abgeschlossen - E-Mail-Antwort bereit",
	},
}

var experts = map[string]struct{ name, icon string }{
	"zuzahlung":            {"Zuzahlung Experte", "💰"},
	"familienversicherung": {"Familienversicherung Experte", "👨‍👩‍👧‍👦"},
	"pflegeversicherung":   {"Pflegeversicherung Experte", "🏥"},
	"krankengeld":          {"Krankengeld Experte", "🤒"},
	"kostenuebernahme":     {"Kostenübernahme Experte", "💳"},
	"widerspruch":          {"Widerspruch Experte", "⚖️"},
	"mutterschaft":         {"Mutterschaft Experte", "🤱"},
	"rehabilitation":       {"Rehabilitation Experte", "🏃‍♂️"},
	"terminvermittlung":    {"Terminvermittlung Experte", "📅"},
	"sonstiges":            {"Allgemein Experte", "📋"},
}

func init() {
	for topic, e := range experts {
		catalogue[ExpertStep(topic)] = StepInfo{
			Name:    e.name,
			Icon:    e.icon,
			Message: e.name + " analysiert spezifische Anfrage und sammelt relevante Informationen...",
		}
	}
}

// Lookup returns the display metadata for t. ok is false for types outside
// the catalogue.
func Lookup(t StepType) (StepInfo, bool) {
	info, ok := catalogue[t]
	return info, ok
}

// Known reports whether t is a recognised backend step type.
func Known(t StepType) bool {
	_, ok := catalogue[t]
	return ok
}

// IsExpert reports whether t is the generic or a topic expert step.
func IsExpert(t StepType) bool {
	return t == StepExpertAgent || (strings.HasPrefix(string(t), "expert_") && Known(t))
}

// stepStatus maps a backend step status onto the display enum.
func stepStatus(s string) StepStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "active":
		return StepActive
	case "completed":
		return StepCompleted
	case "error", "failed":
		return StepError
	default:
		return StepPending
	}
}
