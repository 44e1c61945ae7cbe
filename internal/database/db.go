package database

import (
	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM. TranslateError
// is enabled so unique constraint violations surface as gorm.ErrDuplicatedKey,
// which the flow repository relies on for at-most-once decisions.
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Company{},
		&model.ApprovalRule{},
		&model.Team{},
		&model.Expense{},
		&model.ApprovalHistoryEntry{},
		&model.ApprovalFlow{},
		&model.ApprovalStep{},
		&model.SequenceApprover{},
		&model.ApprovalDecision{},
		&model.AuditLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
