package usecases

import (
	"strings"

	"zapclinic/internal/entities"
)

// Personalizer adapts a raw reply with the patient profile and recent
// phrasing. All transforms are deterministic template/word substitutions;
// nothing here is generative.
type Personalizer struct{}

func NewPersonalizer() *Personalizer {
	return &Personalizer{}
}

// Personalize applies, in order: greeting name substitution, cross-sell
// suffix, tone adaptation.
func (p *Personalizer) Personalize(rawReply string, profile *entities.PatientProfile, history []entities.Turn, intent entities.Intent) string {
	reply := rawReply

	if profile != nil {
		reply = p.applyGreeting(reply, profile, intent)
		reply = p.applyCrossSell(reply, profile, intent)
	}

	style := DetectStyle(history)
	return applyTone(reply, style)
}

func (p *Personalizer) applyGreeting(reply string, profile *entities.PatientProfile, intent entities.Intent) string {
	if intent.Name != entities.IntentGreeting || profile.Name == "" {
		return reply
	}
	if profile.Returning {
		return "Olá de novo, " + profile.Name + "! 😊 " + reply
	}
	return "Olá, " + profile.Name + "! Seja bem-vindo(a) à clínica. " + reply
}

func (p *Personalizer) applyCrossSell(reply string, profile *entities.PatientProfile, intent entities.Intent) string {
	if intent.Category != entities.CategoryAppointment || profile.PendingOffer == "" {
		return reply
	}
	return reply + "\n\nAproveitando: notei que você ainda não fez " + profile.PendingOffer +
		". Quer incluir no mesmo dia?"
}

// Markers counted over recent user turns to infer communication style.
var (
	informalMarkers = []string{"oi", "oie", "opa", "blz", "vc", "vcs", "tá", "pra", "valeu", "obg", "kk"}
	formalMarkers   = []string{"prezado", "prezada", "senhor", "senhora", "por gentileza", "cordialmente", "gostaria de saber"}
)

// DetectStyle infers the patient's communication style from the last ~10
// user turns. Ties fall back to friendly.
func DetectStyle(history []entities.Turn) string {
	informal, formal := 0, 0
	seen := 0
	for i := len(history) - 1; i >= 0 && seen < 10; i-- {
		if history[i].Role != entities.RoleUser {
			continue
		}
		seen++
		lower := strings.ToLower(history[i].Content)
		words := map[string]bool{}
		for _, w := range strings.Fields(lower) {
			words[strings.Trim(w, ".,!?;:()")] = true
		}
		for _, m := range informalMarkers {
			if words[m] || (strings.Contains(m, " ") && strings.Contains(lower, m)) {
				informal++
			}
		}
		for _, m := range formalMarkers {
			if words[m] || (strings.Contains(m, " ") && strings.Contains(lower, m)) {
				formal++
			}
		}
	}

	switch {
	case informal > formal:
		return entities.StyleInformal
	case formal > informal:
		return entities.StyleFormal
	default:
		return entities.StyleFriendly
	}
}

// Word-substitution tables per style. Keys and values are whole words.
var toneMaps = map[string]map[string]string{
	entities.StyleFormal: {
		"oi":    "olá",
		"tá":    "está",
		"pra":   "para",
		"valeu": "obrigado",
	},
	entities.StyleInformal: {
		"olá":      "oi",
		"está":     "tá",
		"para":     "pra",
		"obrigado": "valeu",
	},
}

// applyTone rewrites whole words per the style table, preserving leading
// capitalization and trailing punctuation. Friendly keeps the text as is.
func applyTone(reply, style string) string {
	table, ok := toneMaps[style]
	if !ok {
		return reply
	}

	words := strings.Split(reply, " ")
	for i, w := range words {
		core := strings.TrimRight(w, ".,!?;:")
		suffix := w[len(core):]
		repl, ok := table[strings.ToLower(core)]
		if !ok {
			continue
		}
		if core != "" && core[0] >= 'A' && core[0] <= 'Z' {
			repl = strings.ToUpper(repl[:1]) + repl[1:]
		}
		words[i] = repl + suffix
	}
	return strings.Join(words, " ")
}
