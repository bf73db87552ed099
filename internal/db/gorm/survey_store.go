package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// SurveyStore persists the survey control state.
type SurveyStore struct {
	db        *gorm.DB
	sessionID string
}

// NewSurveyStore creates a survey store for sessionID (models.DefaultSessionID
// when empty).
func NewSurveyStore(store *Store, sessionID string) *SurveyStore {
	if sessionID == "" {
		sessionID = models.DefaultSessionID
	}
	return &SurveyStore{db: store.DB, sessionID: sessionID}
}

// Get returns the current state, or an inactive state when none is stored.
func (s *SurveyStore) Get(ctx context.Context) (models.SurveyState, error) {
	var row SurveyState
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", s.sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SurveyState{SessionID: s.sessionID}, nil
	}
	if err != nil {
		return models.SurveyState{}, err
	}
	return row.toModel(), nil
}

// Update applies a partial update and returns the resulting state.
func (s *SurveyStore) Update(ctx context.Context, update models.SurveyStateUpdate) (models.SurveyState, error) {
	var out models.SurveyState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := SurveyState{SessionID: s.sessionID}
		err := tx.First(&row, "session_id = ?", s.sessionID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		state := row.toModel()
		update.Apply(&state)
		row.QuestionText = state.QuestionText
		row.CurrentQuestionIndex = state.CurrentQuestionIndex
		row.Active = state.Active

		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out = row.toModel()
		return nil
	})
	return out, err
}
