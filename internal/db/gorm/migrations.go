package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_responses",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Response{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("responses")
			},
		},
		{
			ID: "002_synonym_rules",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SynonymRule{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("synonym_rules")
			},
		},
		{
			ID: "003_survey_state",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&SurveyState{}); err != nil {
					return err
				}
				seed := SurveyState{SessionID: models.DefaultSessionID}
				return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("survey_state")
			},
		},
	})

	return m.Migrate()
}
