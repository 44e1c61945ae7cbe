package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryTotal is an aggregate row for company expense statistics.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

// StatusTotal is an aggregate row grouping expenses by status.
type StatusTotal struct {
	Status string `json:"status"`
	Total  string `json:"total"`
	Count  int    `json:"count"`
}

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]model.Expense, error)
	ListByEmployees(ctx context.Context, companyID uuid.UUID, employeeIDs []uuid.UUID) ([]model.Expense, error)
	Update(ctx context.Context, expense *model.Expense) error
	// UpdateStatus mutates only the status column; used by the synchronizer
	// inside the flow's transaction.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	AppendHistory(ctx context.Context, entry *model.ApprovalHistoryEntry) error
	TotalsByStatus(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]StatusTotal, error)
	TotalsByCategory(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]CategoryTotal, error)
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Create(expense).Error
}

func (r *expenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	err := GetDB(ctx, r.db).
		Preload("Employee").
		Preload("ApprovalHistory", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp") }).
		First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).
		Preload("ApprovalHistory", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp") }).
		Where("employee_id = ?", employeeID).
		Order("date DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *expenseRepository) ListByEmployees(ctx context.Context, companyID uuid.UUID, employeeIDs []uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).
		Preload("Employee").
		Where("company_id = ? AND employee_id IN ?", companyID, employeeIDs).
		Order("date DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *expenseRepository) Update(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Save(expense).Error
}

func (r *expenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Expense{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *expenseRepository) AppendHistory(ctx context.Context, entry *model.ApprovalHistoryEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *expenseRepository) TotalsByStatus(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]StatusTotal, error) {
	var totals []StatusTotal
	err := GetDB(ctx, r.db).Model(&model.Expense{}).
		Select("status, COALESCE(CAST(SUM(converted_amount) AS TEXT), '0') as total, COUNT(*) as count").
		Where("company_id = ? AND date >= ? AND date <= ?", companyID, start, end).
		Group("status").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *expenseRepository) TotalsByCategory(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]CategoryTotal, error) {
	var totals []CategoryTotal
	err := GetDB(ctx, r.db).Model(&model.Expense{}).
		Select("category, COALESCE(CAST(SUM(converted_amount) AS TEXT), '0') as total, COUNT(*) as count").
		Where("company_id = ? AND date >= ? AND date <= ?", companyID, start, end).
		Group("category").
		Order("SUM(converted_amount) DESC").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}
