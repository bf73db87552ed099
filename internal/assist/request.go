package assist

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/thebtf/feudsurvey/pkg/models"
)

const (
	// MaxBatch is the largest number of responses sent in one request.
	MaxBatch = 500
	// MaxItemRunes caps the text of each submitted response.
	MaxItemRunes = 120
	// MaxGroups is the group ceiling the service is asked to respect.
	MaxGroups = 20
	// MaxLabelRunes caps a returned label.
	MaxLabelRunes = 60
	// Temperature keeps the service close to deterministic.
	Temperature = 0.2
)

const systemPrompt = "You cluster short survey answers for a Family Feud game. " +
	"Group semantically similar answers and produce concise canonical labels (1-3 words). " +
	"Return strict JSON only."

var instructions = fmt.Sprintf("Cluster the answers into canonical groups. "+
	"Apply the provided synonyms as equivalent. "+
	"Return JSON: { clusters: [ { label: string, memberIds: string[], examples?: string[] } ] }. "+
	"Use at most %d clusters if there are many small unique answers. Prefer common groups.", MaxGroups)

// Item is one response as submitted to the service.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type promptPayload struct {
	Synonyms     map[string]string `json:"synonyms"`
	Instructions string            `json:"instructions"`
	Question     string            `json:"question"`
	Answers      []Item            `json:"answers"`
}

// batch returns the earliest MaxBatch responses.
func batch(responses []models.RawResponse) []models.RawResponse {
	if len(responses) > MaxBatch {
		return responses[:MaxBatch]
	}
	return responses
}

// Items converts a batch into submitted items, truncating each text.
func Items(responses []models.RawResponse) []Item {
	items := make([]Item, len(responses))
	for i, r := range responses {
		items[i] = Item{ID: r.ID, Text: truncateRunes(r.Text, MaxItemRunes)}
	}
	return items
}

// BuildRequest renders the single completion request for a batch.
func BuildRequest(questionText string, rules models.SynonymRuleSet, responses []models.RawResponse) (Request, error) {
	prompt, err := json.Marshal(promptPayload{
		Instructions: instructions,
		Question:     questionText,
		Synonyms:     rules.Map(),
		Answers:      Items(batch(responses)),
	})
	if err != nil {
		return Request{}, fmt.Errorf("marshaling prompt: %w", err)
	}
	return Request{
		System:      systemPrompt,
		Prompt:      string(prompt),
		Temperature: Temperature,
	}, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
