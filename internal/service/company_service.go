package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

type UpdateCompanyRequest struct {
	Name     string `json:"name"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

type ApprovalRuleRequest struct {
	Percentage        int      `json:"percentage" binding:"min=0,max=100"`
	IsSequential      bool     `json:"is_sequential"`
	RequiredApprovers []string `json:"required_approvers"` // User IDs
}

type CompanyResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Country  string    `json:"country"`
	Currency string    `json:"currency"`
	AdminID  uuid.UUID `json:"admin_id"`
}

type ApprovalRuleResponse struct {
	Percentage        int            `json:"percentage"`
	IsSequential      bool           `json:"is_sequential"`
	RequiredApprovers []UserResponse `json:"required_approvers"`
}

// CompanyService manages the tenant record and its approval policy.
type CompanyService interface {
	GetCompany(ctx context.Context, requester *model.User) (*CompanyResponse, error)
	UpdateCompany(ctx context.Context, admin *model.User, req UpdateCompanyRequest) (*CompanyResponse, error)
	// GetApprovalRule returns the configured rule, or the defaults when the
	// company has never set one.
	GetApprovalRule(ctx context.Context, requester *model.User) (*ApprovalRuleResponse, error)
	UpdateApprovalRule(ctx context.Context, admin *model.User, req ApprovalRuleRequest) (*ApprovalRuleResponse, error)
}

type companyService struct {
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewCompanyService(
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CompanyService {
	return &companyService{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func mapToCompanyResponse(c *model.Company) *CompanyResponse {
	return &CompanyResponse{
		ID:       c.ID,
		Name:     c.Name,
		Country:  c.Country,
		Currency: c.Currency,
		AdminID:  c.AdminID,
	}
}

func (s *companyService) GetCompany(ctx context.Context, requester *model.User) (*CompanyResponse, error) {
	company, err := s.companyRepo.FindByID(ctx, requester.CompanyID)
	if err != nil {
		return nil, errors.New("company not found")
	}
	return mapToCompanyResponse(company), nil
}

func (s *companyService) UpdateCompany(ctx context.Context, admin *model.User, req UpdateCompanyRequest) (*CompanyResponse, error) {
	company, err := s.companyRepo.FindByID(ctx, admin.CompanyID)
	if err != nil {
		return nil, errors.New("company not found")
	}

	if req.Name != "" {
		company.Name = req.Name
	}
	if req.Country != "" {
		company.Country = req.Country
	}
	if req.Currency != "" {
		// Changing the base currency only affects future submissions;
		// already converted amounts are not restated.
		company.Currency = req.Currency
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.companyRepo.Update(txCtx, company); err != nil {
			return err
		}
		details, _ := json.Marshal(req)
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &admin.ID,
			Action:     model.ActionUpdateCompany,
			EntityID:   company.ID.String(),
			EntityName: company.Name,
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, err
	}

	return mapToCompanyResponse(company), nil
}

func (s *companyService) GetApprovalRule(ctx context.Context, requester *model.User) (*ApprovalRuleResponse, error) {
	rule, err := s.companyRepo.GetApprovalRule(ctx, requester.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rule: %w", err)
	}
	if rule == nil {
		return &ApprovalRuleResponse{
			Percentage:        100,
			IsSequential:      false,
			RequiredApprovers: []UserResponse{},
		}, nil
	}
	return mapToRuleResponse(rule), nil
}

func (s *companyService) UpdateApprovalRule(ctx context.Context, admin *model.User, req ApprovalRuleRequest) (*ApprovalRuleResponse, error) {
	approvers := make([]model.User, 0, len(req.RequiredApprovers))
	for _, raw := range req.RequiredApprovers {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid approver id %q", raw)
		}
		user, err := s.userRepo.GetByIDInCompany(ctx, id, admin.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("approver %s not found in company", raw)
		}
		approvers = append(approvers, *user)
	}

	rule, err := s.companyRepo.GetApprovalRule(ctx, admin.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rule: %w", err)
	}
	if rule == nil {
		rule = &model.ApprovalRule{CompanyID: admin.CompanyID}
	}
	rule.Percentage = req.Percentage
	rule.IsSequential = req.IsSequential
	rule.RequiredApprovers = approvers

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.companyRepo.SaveApprovalRule(txCtx, rule); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]interface{}{
			"percentage":    req.Percentage,
			"is_sequential": req.IsSequential,
			"required":      len(approvers),
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &admin.ID,
			Action:     model.ActionUpdateApprovalRule,
			EntityID:   admin.CompanyID.String(),
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, err
	}

	return mapToRuleResponse(rule), nil
}

func mapToRuleResponse(rule *model.ApprovalRule) *ApprovalRuleResponse {
	approvers := make([]UserResponse, 0, len(rule.RequiredApprovers))
	for i := range rule.RequiredApprovers {
		approvers = append(approvers, *mapToUserResponse(&rule.RequiredApprovers[i]))
	}
	return &ApprovalRuleResponse{
		Percentage:        rule.Percentage,
		IsSequential:      rule.IsSequential,
		RequiredApprovers: approvers,
	}
}
