package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	ListByManager(ctx context.Context, companyID, managerID uuid.UUID) ([]model.Team, error)
	FindByIDForManager(ctx context.Context, teamID, companyID, managerID uuid.UUID) (*model.Team, error)
}

type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *model.Team) error {
	return GetDB(ctx, r.db).Create(team).Error
}

func (r *teamRepository) ListByManager(ctx context.Context, companyID, managerID uuid.UUID) ([]model.Team, error) {
	var teams []model.Team
	err := GetDB(ctx, r.db).
		Preload("Members").
		Where("company_id = ? AND manager_id = ?", companyID, managerID).
		Order("created_at").
		Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *teamRepository) FindByIDForManager(ctx context.Context, teamID, companyID, managerID uuid.UUID) (*model.Team, error) {
	var team model.Team
	err := GetDB(ctx, r.db).
		Preload("Members").
		First(&team, "id = ? AND company_id = ? AND manager_id = ?", teamID, companyID, managerID).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}
