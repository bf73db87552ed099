package gorm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// ResponseStore is the append-only response repository.
type ResponseStore struct {
	db *gorm.DB
}

// NewResponseStore creates a new response store.
func NewResponseStore(store *Store) *ResponseStore {
	return &ResponseStore{db: store.DB}
}

// Append stores r, assigning its id and timestamp when unset, and returns the id.
func (s *ResponseStore) Append(ctx context.Context, r *models.RawResponse) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.SessionID == "" {
		r.SessionID = models.DefaultSessionID
	}

	row := &Response{
		ResponseID:     r.ID,
		SessionID:      r.SessionID,
		QuestionIndex:  r.QuestionIndex,
		QuestionText:   r.QuestionText,
		ClientID:       r.ClientID,
		IP:             r.IP,
		Raw:            r.Text,
		CreatedAtEpoch: r.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", err
	}
	return r.ID, nil
}

// List returns the responses to one question in insertion order.
func (s *ResponseStore) List(ctx context.Context, questionIndex int) ([]models.RawResponse, error) {
	var rows []Response
	err := s.db.WithContext(ctx).
		Where("question_index = ?", questionIndex).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelResponses(rows), nil
}

// All returns every stored response in insertion order. A positive limit
// keeps only the most recent limit responses.
func (s *ResponseStore) All(ctx context.Context, limit int) ([]models.RawResponse, error) {
	var rows []Response
	q := s.db.WithContext(ctx)
	if limit > 0 {
		sub := s.db.Model(&Response{}).Select("id").Order("id DESC").Limit(limit)
		q = q.Where("id IN (?)", sub)
	}
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toModelResponses(rows), nil
}

// Count returns the number of responses to one question.
func (s *ResponseStore) Count(ctx context.Context, questionIndex int) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Response{}).
		Where("question_index = ?", questionIndex).
		Count(&count).Error
	return count, err
}

func toModelResponses(rows []Response) []models.RawResponse {
	out := make([]models.RawResponse, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out
}
