package assist

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// Validate turns raw service content into clusters. The content must be a
// JSON object holding a "clusters" array of objects. Member ids not present
// in submitted, or already claimed by an earlier cluster, are dropped.
// Percentages are computed against total, the full response count.
func Validate(content string, submitted []models.RawResponse, total int) ([]models.Cluster, error) {
	body := []byte(stripCodeFence(content))
	if !json.Valid(body) {
		return nil, parseFailure(snippet(body), nil)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, parseFailure(snippet(body), err)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, invalid("payload is not an object", nil)
	}
	list, ok := obj["clusters"].([]any)
	if !ok {
		return nil, invalid("payload has no clusters array", nil)
	}

	byID := models.IndexResponses(submitted)
	claimed := make(map[string]bool, len(submitted))

	clusters := make([]models.Cluster, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("cluster entry is not an object", nil)
		}

		ids, present := entry["memberIds"]
		if !present || ids == nil {
			ids = entry["members"]
		}
		members := make([]string, 0)
		for _, id := range stringsOf(ids) {
			if _, known := byID[id]; !known || claimed[id] {
				continue
			}
			claimed[id] = true
			members = append(members, id)
		}

		examples := make([]string, 0, models.MaxExamples)
		for _, ex := range stringsOf(entry["examples"]) {
			if strings.TrimSpace(ex) == "" {
				continue
			}
			examples = append(examples, ex)
			if len(examples) == models.MaxExamples {
				break
			}
		}
		if len(examples) == 0 {
			for _, id := range members {
				if len(examples) == models.MaxExamples {
					break
				}
				if text := byID[id].Text; text != "" {
					examples = append(examples, text)
				}
			}
		}

		label, _ := entry["label"].(string)
		label = truncateRunes(strings.TrimSpace(label), MaxLabelRunes)
		if label == "" && len(examples) > 0 {
			label = truncateRunes(examples[0], MaxLabelRunes)
		}

		clusters = append(clusters, models.Cluster{
			Label:    label,
			Members:  members,
			Examples: examples,
		})
	}

	models.Recount(clusters, total)
	return clusters, nil
}

// stringsOf keeps the string elements of a decoded JSON array.
func stringsOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// stripCodeFence removes a surrounding ``` fence some models add despite the
// JSON response mode.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
