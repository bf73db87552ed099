// Package models contains domain models for feudsurvey.
package models

// DefaultSessionID is the survey session used when none is configured.
const DefaultSessionID = "default"

// SurveyState is the live survey control state set by the operator.
type SurveyState struct {
	SessionID            string `json:"sessionId"`
	QuestionText         string `json:"questionText"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	Active               bool   `json:"active"`
}

// SurveyStateUpdate carries a partial update; nil fields are left untouched.
type SurveyStateUpdate struct {
	Active               *bool   `json:"active,omitempty"`
	CurrentQuestionIndex *int    `json:"currentQuestionIndex,omitempty"`
	QuestionText         *string `json:"questionText,omitempty"`
}

// Apply merges the update into the state. Negative question indexes clamp to zero.
func (u SurveyStateUpdate) Apply(state *SurveyState) {
	if u.Active != nil {
		state.Active = *u.Active
	}
	if u.CurrentQuestionIndex != nil {
		idx := *u.CurrentQuestionIndex
		if idx < 0 {
			idx = 0
		}
		state.CurrentQuestionIndex = idx
	}
	if u.QuestionText != nil {
		state.QuestionText = *u.QuestionText
	}
}
