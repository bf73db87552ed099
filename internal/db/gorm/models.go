package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// Response is a stored survey answer. Rows are never updated; ID preserves
// insertion order.
type Response struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ResponseID     string `gorm:"uniqueIndex;not null"`
	SessionID      string `gorm:"index:idx_responses_question,priority:1;not null"`
	QuestionIndex  int    `gorm:"index:idx_responses_question,priority:2;not null"`
	QuestionText   string `gorm:"type:text"`
	ClientID       string
	IP             string
	Raw            string `gorm:"type:text;not null"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (Response) TableName() string { return "responses" }

// BeforeCreate hook to ensure timestamps are set.
func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAtEpoch == 0 {
		r.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.UnixMilli(r.CreatedAtEpoch).UTC().Format(time.RFC3339)
	}
	return nil
}

func (r *Response) toModel() models.RawResponse {
	return models.RawResponse{
		ID:            r.ResponseID,
		SessionID:     r.SessionID,
		QuestionIndex: r.QuestionIndex,
		QuestionText:  r.QuestionText,
		ClientID:      r.ClientID,
		IP:            r.IP,
		Text:          r.Raw,
		Timestamp:     r.CreatedAtEpoch,
	}
}

// SynonymRule is one stored rule. Position keeps the application order.
type SynonymRule struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Position int    `gorm:"index;not null"`
	From     string `gorm:"column:from_text;type:text;not null"`
	To       string `gorm:"column:to_text;type:text;not null"`
}

func (SynonymRule) TableName() string { return "synonym_rules" }

// SurveyState is the singleton survey control row for a session.
type SurveyState struct {
	SessionID            string `gorm:"primaryKey"`
	QuestionText         string `gorm:"type:text"`
	CurrentQuestionIndex int    `gorm:"default:0"`
	Active               bool   `gorm:"default:false"`
	UpdatedAtEpoch       int64
}

func (SurveyState) TableName() string { return "survey_state" }

// BeforeSave hook keeps the update timestamp current.
func (s *SurveyState) BeforeSave(tx *gorm.DB) error {
	s.UpdatedAtEpoch = time.Now().UnixMilli()
	return nil
}

func (s *SurveyState) toModel() models.SurveyState {
	return models.SurveyState{
		SessionID:            s.SessionID,
		QuestionText:         s.QuestionText,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Active:               s.Active,
	}
}
