package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// SynonymStore persists the ordered synonym rule set.
type SynonymStore struct {
	db *gorm.DB
}

// NewSynonymStore creates a new synonym store.
func NewSynonymStore(store *Store) *SynonymStore {
	return &SynonymStore{db: store.DB}
}

// Get returns the stored rules in application order.
func (s *SynonymStore) Get(ctx context.Context) (models.SynonymRuleSet, error) {
	var rows []SynonymRule
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return models.SynonymRuleSet{}, err
	}
	rules := make([]models.SynonymRule, len(rows))
	for i, row := range rows {
		rules[i] = models.SynonymRule{From: row.From, To: row.To}
	}
	return models.NewSynonymRuleSet(rules...), nil
}

// Set replaces the whole rule set in one transaction.
func (s *SynonymStore) Set(ctx context.Context, rules models.SynonymRuleSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SynonymRule{}).Error; err != nil {
			return err
		}
		list := rules.Rules()
		if len(list) == 0 {
			return nil
		}
		rows := make([]SynonymRule, len(list))
		for i, r := range list {
			rows[i] = SynonymRule{Position: i, From: r.From, To: r.To}
		}
		return tx.Create(&rows).Error
	})
}
