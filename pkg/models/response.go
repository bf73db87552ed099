// Package models contains domain models for feudsurvey.
package models

import "time"

// RawResponse is a single audience answer captured for a survey question.
// Responses are immutable once stored and are only created by the response repository.
type RawResponse struct {
	ID            string `json:"id"`
	QuestionText  string `json:"questionText"`
	SessionID     string `json:"sessionId"`
	ClientID      string `json:"clientId"`
	IP            string `json:"ip,omitempty"`
	Text          string `json:"raw"`
	Timestamp     int64  `json:"ts"`
	QuestionIndex int    `json:"questionIndex"`
}

// NewRawResponse builds a response stamped with the current time.
// The id is left empty; the repository assigns it on append.
func NewRawResponse(questionIndex int, questionText, sessionID, clientID, text string) *RawResponse {
	return &RawResponse{
		QuestionIndex: questionIndex,
		QuestionText:  questionText,
		SessionID:     sessionID,
		ClientID:      clientID,
		Text:          text,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// ResponseIDs returns the ids of responses in order.
func ResponseIDs(responses []RawResponse) []string {
	ids := make([]string, len(responses))
	for i := range responses {
		ids[i] = responses[i].ID
	}
	return ids
}

// IndexResponses maps response id to response.
func IndexResponses(responses []RawResponse) map[string]*RawResponse {
	byID := make(map[string]*RawResponse, len(responses))
	for i := range responses {
		byID[responses[i].ID] = &responses[i]
	}
	return byID
}
