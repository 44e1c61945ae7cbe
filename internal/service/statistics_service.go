package service

import (
	"context"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
)

type StatisticsResponse struct {
	TimeRangeStartDate time.Time                  `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time                  `json:"time_range_end_date"`
	TotalSpend         string                     `json:"total_spend"` // Approved only, company currency
	ByStatus           []repository.StatusTotal   `json:"by_status"`
	ByCategory         []repository.CategoryTotal `json:"by_category"`
}

// StatisticsService aggregates company expense spend for reporting.
type StatisticsService interface {
	GetStatistics(ctx context.Context, requester *model.User, startDate, endDate time.Time) (StatisticsResponse, error)
}

type statisticsService struct {
	expenseRepo repository.ExpenseRepository
}

func NewStatisticsService(expenseRepo repository.ExpenseRepository) StatisticsService {
	return &statisticsService{expenseRepo: expenseRepo}
}

func (s *statisticsService) GetStatistics(ctx context.Context, requester *model.User, startDate, endDate time.Time) (StatisticsResponse, error) {
	response := StatisticsResponse{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	byStatus, err := s.expenseRepo.TotalsByStatus(ctx, requester.CompanyID, startDate, endDate)
	if err != nil {
		return StatisticsResponse{}, err
	}
	response.ByStatus = byStatus

	byCategory, err := s.expenseRepo.TotalsByCategory(ctx, requester.CompanyID, startDate, endDate)
	if err != nil {
		return StatisticsResponse{}, err
	}
	response.ByCategory = byCategory

	total := decimal.Zero
	for _, row := range byStatus {
		if row.Status != model.ExpenseApproved {
			continue
		}
		if amount, parseErr := decimal.NewFromString(row.Total); parseErr == nil {
			total = total.Add(amount)
		}
	}
	response.TotalSpend = total.StringFixed(2)

	return response, nil
}
