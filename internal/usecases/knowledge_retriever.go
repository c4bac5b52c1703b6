package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"zapclinic/internal/entities"
	"zapclinic/internal/interfaces"
)

// DefaultTopK bounds how many knowledge chunks reach the prompt.
const DefaultTopK = 3

// RetrievalResult carries the retrieved chunks and the augmented prompt
// that goes to the Completion Service instead of the raw user message.
type RetrievalResult struct {
	Chunks          []entities.KnowledgeChunk
	AugmentedPrompt string
	Sources         []string
}

// KnowledgeRetriever answers queries from the clinic's structured record.
// Specialized routines cover the mapped intents; everything else falls back
// to keyword search over FAQs and policy text. It never fabricates a chunk:
// no match yields an empty chunk list and a prompt that says so.
type KnowledgeRetriever struct {
	knowledge interfaces.KnowledgeSource
}

func NewKnowledgeRetriever(knowledge interfaces.KnowledgeSource) *KnowledgeRetriever {
	return &KnowledgeRetriever{knowledge: knowledge}
}

func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query, intentName string, params map[string]string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	clinic, err := r.knowledge.Clinic(ctx)
	if err != nil {
		return nil, fmt.Errorf("load clinic knowledge: %w", err)
	}

	var chunks []entities.KnowledgeChunk
	switch intentName {
	case entities.IntentInfoHours, entities.IntentAppointmentAvailability:
		chunks = hoursChunks(clinic)
	case entities.IntentInfoLocation:
		chunks = locationChunks(clinic)
	case entities.IntentInfoServices:
		chunks = serviceChunks(clinic, params["service"])
	case entities.IntentInfoStaff:
		chunks = staffChunks(clinic)
	case entities.IntentInfoPricing:
		chunks = pricingChunks(clinic, params["service"])
	case entities.IntentInfoPolicy, entities.IntentAppointmentCreate, entities.IntentAppointmentCancel:
		chunks = policyChunks(clinic, "agendamento")
	default:
		chunks = keywordSearch(clinic, query)
	}

	// Specialized routine found nothing for a mapped intent: still try the
	// general search before reporting absence.
	if len(chunks) == 0 && intentName != "" {
		chunks = keywordSearch(clinic, query)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].RelevanceScore > chunks[j].RelevanceScore
	})
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	sources := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		sources = append(sources, ch.Source)
	}

	return &RetrievalResult{
		Chunks:          chunks,
		AugmentedPrompt: buildAugmentedPrompt(query, chunks),
		Sources:         sources,
	}, nil
}

func hoursChunks(clinic *entities.ClinicKnowledge) []entities.KnowledgeChunk {
	if len(clinic.Hours) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, h := range clinic.Hours {
		sb.WriteString(fmt.Sprintf("%s: %s às %s\n", h.Day, h.Open, h.Close))
	}
	return []entities.KnowledgeChunk{{
		Content:        strings.TrimSpace(sb.String()),
		Source:         "horario_funcionamento",
		RelevanceScore: 1.0,
	}}
}

func locationChunks(clinic *entities.ClinicKnowledge) []entities.KnowledgeChunk {
	if clinic.Address == "" {
		return nil
	}
	content := clinic.Address
	if clinic.Phone != "" {
		content += "\nTelefone: " + clinic.Phone
	}
	return []entities.KnowledgeChunk{{
		Content:        content,
		Source:         "endereco",
		RelevanceScore: 1.0,
	}}
}

func serviceChunks(clinic *entities.ClinicKnowledge, service string) []entities.KnowledgeChunk {
	chunks := []entities.KnowledgeChunk{}
	needle := strings.ToLower(service)
	for _, s := range clinic.Services {
		score := 0.8
		if needle != "" && strings.Contains(strings.ToLower(s.Name), needle) {
			score = 1.0
		}
		content := s.Name
		if s.Description != "" {
			content += ": " + s.Description
		}
		chunks = append(chunks, entities.KnowledgeChunk{
			Content:        content,
			Source:         "servicos",
			RelevanceScore: score,
			Metadata:       map[string]string{"service": s.Name},
		})
	}
	return chunks
}

func staffChunks(clinic *entities.ClinicKnowledge) []entities.KnowledgeChunk {
	chunks := []entities.KnowledgeChunk{}
	for _, m := range clinic.Staff {
		content := m.Name + " — " + m.Role
		if m.Specialty != "" {
			content += " (" + m.Specialty + ")"
		}
		chunks = append(chunks, entities.KnowledgeChunk{
			Content:        content,
			Source:         "equipe",
			RelevanceScore: 0.9,
		})
	}
	return chunks
}

func pricingChunks(clinic *entities.ClinicKnowledge, service string) []entities.KnowledgeChunk {
	chunks := []entities.KnowledgeChunk{}
	needle := strings.ToLower(service)
	for _, s := range clinic.Services {
		if s.Price == "" {
			continue
		}
		score := 0.8
		if needle != "" && strings.Contains(strings.ToLower(s.Name), needle) {
			score = 1.0
		}
		chunks = append(chunks, entities.KnowledgeChunk{
			Content:        fmt.Sprintf("%s: %s", s.Name, s.Price),
			Source:         "precos",
			RelevanceScore: score,
		})
	}
	return chunks
}

func policyChunks(clinic *entities.ClinicKnowledge, topic string) []entities.KnowledgeChunk {
	chunks := []entities.KnowledgeChunk{}
	for _, p := range clinic.Policies {
		score := 0.7
		if strings.Contains(strings.ToLower(p.Topic), topic) {
			score = 1.0
		}
		chunks = append(chunks, entities.KnowledgeChunk{
			Content:        p.Text,
			Source:         "politicas",
			RelevanceScore: score,
		})
	}
	return chunks
}

// keywordSearch scores FAQs and policies by word overlap with the query.
func keywordSearch(clinic *entities.ClinicKnowledge, query string) []entities.KnowledgeChunk {
	words := wordSet(query)
	if len(words) == 0 {
		return nil
	}

	chunks := []entities.KnowledgeChunk{}
	for _, f := range clinic.FAQs {
		score := overlapScore(words, f.Question+" "+f.Answer)
		if score > 0 {
			chunks = append(chunks, entities.KnowledgeChunk{
				Content:        f.Question + "\n" + f.Answer,
				Source:         "faq",
				RelevanceScore: score,
			})
		}
	}
	for _, p := range clinic.Policies {
		score := overlapScore(words, p.Topic+" "+p.Text)
		if score > 0 {
			chunks = append(chunks, entities.KnowledgeChunk{
				Content:        p.Text,
				Source:         "politicas",
				RelevanceScore: score,
			})
		}
	}
	return chunks
}

func overlapScore(queryWords map[string]bool, text string) float64 {
	textWords := wordSet(text)
	if len(queryWords) == 0 {
		return 0
	}
	matches := 0
	for w := range queryWords {
		if textWords[w] {
			matches++
		}
	}
	return float64(matches) / float64(len(queryWords))
}

// buildAugmentedPrompt assembles what actually goes to the Completion
// Service: the use-only-supplied instruction, the numbered chunks with
// source labels, the original query and a response cue. An empty chunk list
// surfaces "information not available" framing instead of pretending data
// exists.
func buildAugmentedPrompt(query string, chunks []entities.KnowledgeChunk) string {
	var sb strings.Builder
	sb.WriteString("Responda usando SOMENTE as informações fornecidas abaixo. ")
	sb.WriteString("Não invente dados que não estejam listados.\n\n")

	if len(chunks) == 0 {
		sb.WriteString("Nenhuma informação disponível sobre este assunto. ")
		sb.WriteString("Diga ao paciente que não possui essa informação e sugira falar com a recepção.\n\n")
	} else {
		for i, ch := range chunks {
			sb.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, ch.Source, ch.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Pergunta do paciente: " + query + "\n\n")
	sb.WriteString("Responda de forma curta e cordial, em português.")
	return sb.String()
}
