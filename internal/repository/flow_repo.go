package repository

import (
	"context"
	"errors"

	"backend/internal/model"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApprovalFlowRepository interface {
	Create(ctx context.Context, flow *model.ApprovalFlow) error
	FindByExpenseID(ctx context.Context, expenseID uuid.UUID) (*model.ApprovalFlow, error)
	// FindByExpenseIDForUpdate locks the flow row for the remainder of the
	// surrounding transaction, serializing concurrent decision submissions.
	FindByExpenseIDForUpdate(ctx context.Context, expenseID uuid.UUID) (*model.ApprovalFlow, error)
	ListOpenForApprover(ctx context.Context, companyID, approverID uuid.UUID) ([]model.ApprovalFlow, error)
	AppendDecision(ctx context.Context, decision *model.ApprovalDecision) error
	// UpdateState compare-and-swaps status/current_step against the version
	// the flow was read at; a lost race yields workflow.ErrConcurrentModification.
	UpdateState(ctx context.Context, flowID uuid.UUID, readVersion int, status string, currentStep int) error
}

type approvalFlowRepository struct {
	db *gorm.DB
}

func NewApprovalFlowRepository(db *gorm.DB) ApprovalFlowRepository {
	return &approvalFlowRepository{db: db}
}

func (r *approvalFlowRepository) Create(ctx context.Context, flow *model.ApprovalFlow) error {
	return GetDB(ctx, r.db).Create(flow).Error
}

func (r *approvalFlowRepository) FindByExpenseID(ctx context.Context, expenseID uuid.UUID) (*model.ApprovalFlow, error) {
	var flow model.ApprovalFlow
	err := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number") }).
		Preload("Sequence", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("decided_at") }).
		First(&flow, "expense_id = ?", expenseID).Error
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *approvalFlowRepository) FindByExpenseIDForUpdate(ctx context.Context, expenseID uuid.UUID) (*model.ApprovalFlow, error) {
	db := GetDB(ctx, r.db)

	var flow model.ApprovalFlow
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&flow, "expense_id = ?", expenseID).Error; err != nil {
		return nil, err
	}

	// Children are loaded after the row lock is held, so no decision can be
	// appended between the read and this transaction's writes.
	if err := db.Order("position").Find(&flow.Sequence, "flow_id = ?", flow.ID).Error; err != nil {
		return nil, err
	}
	if err := db.Order("step_number").Find(&flow.Steps, "flow_id = ?", flow.ID).Error; err != nil {
		return nil, err
	}
	if err := db.Order("decided_at").Find(&flow.Approvals, "flow_id = ?", flow.ID).Error; err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *approvalFlowRepository) ListOpenForApprover(ctx context.Context, companyID, approverID uuid.UUID) ([]model.ApprovalFlow, error) {
	var flows []model.ApprovalFlow
	err := GetDB(ctx, r.db).
		Joins("JOIN sequence_approvers ON sequence_approvers.flow_id = approval_flows.id").
		Where("approval_flows.company_id = ?", companyID).
		Where("sequence_approvers.approver_id = ?", approverID).
		Where("approval_flows.status IN ?", []string{workflow.StatusPending, workflow.StatusInProgress}).
		Where("NOT EXISTS (SELECT 1 FROM approval_decisions d WHERE d.flow_id = approval_flows.id AND d.approver_id = ?)", approverID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number") }).
		Preload("Sequence", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Approvals").
		Order("approval_flows.created_at").
		Find(&flows).Error
	if err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *approvalFlowRepository) AppendDecision(ctx context.Context, decision *model.ApprovalDecision) error {
	if err := GetDB(ctx, r.db).Create(decision).Error; err != nil {
		// The unique (flow_id, approver_id) index backs the at-most-one
		// decision invariant even if two transactions race past the in-memory
		// guard.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return workflow.ErrDuplicateDecision
		}
		return err
	}
	return nil
}

func (r *approvalFlowRepository) UpdateState(ctx context.Context, flowID uuid.UUID, readVersion int, status string, currentStep int) error {
	result := GetDB(ctx, r.db).Model(&model.ApprovalFlow{}).
		Where("id = ? AND version = ?", flowID, readVersion).
		Updates(map[string]interface{}{
			"status":       status,
			"current_step": currentStep,
			"version":      readVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return workflow.ErrConcurrentModification
	}
	return nil
}
