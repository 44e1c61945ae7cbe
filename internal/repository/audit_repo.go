package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository appends and lists audit rows. Log is always called inside
// the transaction of the mutation being audited.
type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	// List returns the company's audit rows newest first, optionally
	// filtered by action. Scoping goes through the users join since audit
	// rows reference the actor, and every actor belongs to one company.
	List(ctx context.Context, companyID uuid.UUID, action string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, companyID uuid.UUID, action string, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	query := GetDB(ctx, r.db).Model(&model.AuditLog{}).
		Joins("JOIN users ON users.id = audit_logs.user_id").
		Where("users.company_id = ?", companyID)
	if action != "" {
		query = query.Where("audit_logs.action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Preload("User").Order("audit_logs.created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
