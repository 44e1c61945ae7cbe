package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	Update(ctx context.Context, company *model.Company) error

	// GetApprovalRule returns nil (no error) when the company has not
	// configured a rule; callers fall back to the default policy.
	GetApprovalRule(ctx context.Context, companyID uuid.UUID) (*model.ApprovalRule, error)
	SaveApprovalRule(ctx context.Context, rule *model.ApprovalRule) error
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Create(company).Error
}

func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) Update(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Save(company).Error
}

func (r *companyRepository) GetApprovalRule(ctx context.Context, companyID uuid.UUID) (*model.ApprovalRule, error) {
	var rule model.ApprovalRule
	err := GetDB(ctx, r.db).
		Preload("RequiredApprovers").
		First(&rule, "company_id = ?", companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *companyRepository) SaveApprovalRule(ctx context.Context, rule *model.ApprovalRule) error {
	db := GetDB(ctx, r.db)
	if err := db.Save(rule).Error; err != nil {
		return err
	}
	// Replace the required-approver associations wholesale; the rule is the
	// single source of truth for the required set.
	return db.Model(rule).Association("RequiredApprovers").Replace(rule.RequiredApprovers)
}
