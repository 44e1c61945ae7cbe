package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/currency"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type SubmitExpenseRequest struct {
	Amount      string `json:"amount" binding:"required"` // Decimal string
	Currency    string `json:"currency" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"` // RFC3339 or YYYY-MM-DD; defaults to today
	ReceiptURL  string `json:"receipt_url"`
}

type ExpenseResponse struct {
	ID              string                 `json:"id"`
	EmployeeID      string                 `json:"employee_id"`
	EmployeeName    string                 `json:"employee_name,omitempty"`
	Amount          string                 `json:"amount"`
	Currency        string                 `json:"currency"`
	ConvertedAmount string                 `json:"converted_amount"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description"`
	Date            string                 `json:"date"`
	ReceiptURL      string                 `json:"receipt_url"`
	Status          string                 `json:"status"`
	ApprovalFlowID  *string                `json:"approval_flow_id"`
	ApprovalHistory []ApprovalHistoryEntry `json:"approval_history"`
}

type ApprovalHistoryEntry struct {
	ApproverID string `json:"approverId"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment"`
	Timestamp  string `json:"timestamp"`
}

// SubmitExpenseResult is the submission response: the created expense plus a
// summary of its freshly seeded approval flow.
type SubmitExpenseResult struct {
	Expense ExpenseResponse `json:"expense"`
	Flow    FlowResponse    `json:"approval_flow"`
}

type TeamExpensesResult struct {
	Teams         []TeamSummary     `json:"teams"`
	TotalExpenses string            `json:"total_expenses"`
	Expenses      []ExpenseResponse `json:"expenses"`
}

type TeamSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// --- Interface ---

type ExpenseService interface {
	// SubmitExpense converts the amount to the company currency, creates the
	// expense, resolves the approver sequence and seeds the approval flow in
	// one transaction. No approvers means no expense is persisted.
	SubmitExpense(ctx context.Context, employee *model.User, req SubmitExpenseRequest) (SubmitExpenseResult, error)
	GetMyExpenses(ctx context.Context, employee *model.User) ([]ExpenseResponse, error)
	GetExpenseByID(ctx context.Context, expenseID uuid.UUID, requester *model.User) (ExpenseResponse, *FlowResponse, error)
	GetTeamExpenses(ctx context.Context, manager *model.User) (TeamExpensesResult, error)
	GetTeamExpensesByID(ctx context.Context, teamID uuid.UUID, manager *model.User) (TeamExpensesResult, error)
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	flowRepo    repository.ApprovalFlowRepository
	userRepo    repository.UserRepository
	companyRepo repository.CompanyRepository
	teamRepo    repository.TeamRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	converter   currency.Converter
	logger      *zap.Logger
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	flowRepo repository.ApprovalFlowRepository,
	userRepo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	teamRepo repository.TeamRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	converter currency.Converter,
	logger *zap.Logger,
) ExpenseService {
	return &expenseService{
		expenseRepo: expenseRepo,
		flowRepo:    flowRepo,
		userRepo:    userRepo,
		companyRepo: companyRepo,
		teamRepo:    teamRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		converter:   converter,
		logger:      logger,
	}
}

// --- Implementation ---

func (s *expenseService) SubmitExpense(ctx context.Context, employee *model.User, req SubmitExpenseRequest) (SubmitExpenseResult, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return SubmitExpenseResult{}, fmt.Errorf("invalid amount: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return SubmitExpenseResult{}, fmt.Errorf("amount must be greater than 0")
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, parseErr := parseDate(req.Date)
		if parseErr != nil {
			return SubmitExpenseResult{}, fmt.Errorf("invalid date: %w", parseErr)
		}
		date = parsed
	}

	company, err := s.companyRepo.FindByID(ctx, employee.CompanyID)
	if err != nil {
		return SubmitExpenseResult{}, fmt.Errorf("company not found: %w", err)
	}

	// Currency conversion happens before the transaction: a conversion
	// failure must not leave a half-created expense behind, and the external
	// call has no business inside a database transaction.
	converted, err := s.converter.Convert(ctx, req.Currency, company.Currency, amount)
	if err != nil {
		return SubmitExpenseResult{}, fmt.Errorf("currency conversion failed: %w", err)
	}

	policy, err := s.policyFor(ctx, employee.CompanyID)
	if err != nil {
		return SubmitExpenseResult{}, err
	}

	sequence, steps, err := s.resolveSequence(ctx, employee, policy)
	if err != nil {
		return SubmitExpenseResult{}, err
	}

	var result SubmitExpenseResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		expense := &model.Expense{
			EmployeeID:      employee.ID,
			CompanyID:       employee.CompanyID,
			Amount:          amount,
			Currency:        req.Currency,
			ConvertedAmount: converted,
			Category:        req.Category,
			Description:     req.Description,
			Date:            date,
			ReceiptURL:      req.ReceiptURL,
			Status:          model.ExpensePending,
		}
		if err := s.expenseRepo.Create(txCtx, expense); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}

		flow := buildFlowRecord(expense, sequence, steps, policy)
		if err := s.flowRepo.Create(txCtx, flow); err != nil {
			return fmt.Errorf("failed to create approval flow: %w", err)
		}

		expense.ApprovalFlowID = &flow.ID
		if err := s.expenseRepo.Update(txCtx, expense); err != nil {
			return fmt.Errorf("failed to link approval flow: %w", err)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"amount":           amount.String(),
			"currency":         req.Currency,
			"converted_amount": converted.String(),
			"approvers":        len(sequence),
		})
		employeeID := employee.ID
		audit := &model.AuditLog{
			UserID:     &employeeID,
			Action:     model.ActionSubmitExpense,
			EntityID:   expense.ID.String(),
			EntityName: req.Category,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result = SubmitExpenseResult{
			Expense: toExpenseResponse(expense),
			Flow:    toFlowResponse(flow),
		}
		return nil
	})
	if err != nil {
		return SubmitExpenseResult{}, err
	}

	s.logger.Info("expense submitted",
		zap.String("expense_id", result.Expense.ID),
		zap.String("employee_id", employee.ID.String()),
		zap.Int("approvers", len(sequence)))
	return result, nil
}

// policyFor loads the company's configured approval rule, falling back to the
// default policy when none exists.
func (s *expenseService) policyFor(ctx context.Context, companyID uuid.UUID) (workflow.Policy, error) {
	rule, err := s.companyRepo.GetApprovalRule(ctx, companyID)
	if err != nil {
		return workflow.Policy{}, fmt.Errorf("failed to load approval rule: %w", err)
	}
	if rule == nil {
		return workflow.DefaultPolicy(), nil
	}

	policy := workflow.Policy{Percentage: rule.Percentage, Sequential: rule.IsSequential}
	for _, u := range rule.RequiredApprovers {
		policy.Required = append(policy.Required, workflow.Approver{ID: u.ID, Role: u.Role})
	}
	return policy, nil
}

// resolveSequence gathers the employee's manager and the company's elevated
// role pool, then delegates to the workflow resolver.
func (s *expenseService) resolveSequence(ctx context.Context, employee *model.User, policy workflow.Policy) ([]workflow.Approver, []workflow.Step, error) {
	var manager *workflow.Approver
	if employee.ManagerID != nil {
		mgr, err := s.userRepo.GetByIDInCompany(ctx, *employee.ManagerID, employee.CompanyID)
		if err != nil {
			return nil, nil, fmt.Errorf("manager not found: %w", err)
		}
		manager = &workflow.Approver{ID: mgr.ID, Role: mgr.Role}
	}

	poolUsers, err := s.userRepo.FindApproverPool(ctx, employee.CompanyID, model.ElevatedRoles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load approver pool: %w", err)
	}

	pool := make([]workflow.Approver, 0, len(poolUsers))
	for _, u := range poolUsers {
		if u.ID == employee.ID {
			// An employee never approves their own expense.
			continue
		}
		pool = append(pool, workflow.Approver{ID: u.ID, Role: u.Role})
	}

	sequence, steps, err := workflow.BuildSequence(manager, pool, policy)
	if err != nil {
		return nil, nil, err
	}
	return sequence, steps, nil
}

func buildFlowRecord(expense *model.Expense, sequence []workflow.Approver, steps []workflow.Step, policy workflow.Policy) *model.ApprovalFlow {
	required := make(map[uuid.UUID]bool, len(policy.Required))
	for _, r := range policy.Required {
		required[r.ID] = true
	}

	flow := &model.ApprovalFlow{
		ExpenseID:    expense.ID,
		CompanyID:    expense.CompanyID,
		Percentage:   policy.Percentage,
		IsSequential: policy.Sequential,
		CurrentStep:  1,
		Status:       workflow.StatusPending,
	}
	for _, st := range steps {
		flow.Steps = append(flow.Steps, model.ApprovalStep{StepNumber: st.Number, Role: st.Role})
	}
	for i, a := range sequence {
		flow.Sequence = append(flow.Sequence, model.SequenceApprover{
			Position:   i + 1,
			ApproverID: a.ID,
			IsRequired: required[a.ID],
		})
	}
	return flow
}

func (s *expenseService) GetMyExpenses(ctx context.Context, employee *model.User) ([]ExpenseResponse, error) {
	expenses, err := s.expenseRepo.ListByEmployee(ctx, employee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	result := make([]ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		result = append(result, toExpenseResponse(&expenses[i]))
	}
	return result, nil
}

func (s *expenseService) GetExpenseByID(ctx context.Context, expenseID uuid.UUID, requester *model.User) (ExpenseResponse, *FlowResponse, error) {
	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return ExpenseResponse{}, nil, fmt.Errorf("expense not found: %w", err)
	}

	if expense.CompanyID != requester.CompanyID ||
		(expense.EmployeeID != requester.ID && requester.Role != model.RoleAdmin) {
		return ExpenseResponse{}, nil, fmt.Errorf("access denied: %w", workflow.ErrNotAuthorized)
	}

	var flowResp *FlowResponse
	if flow, flowErr := s.flowRepo.FindByExpenseID(ctx, expenseID); flowErr == nil {
		fr := toFlowResponse(flow)
		flowResp = &fr
	}

	return toExpenseResponse(expense), flowResp, nil
}

func (s *expenseService) GetTeamExpenses(ctx context.Context, manager *model.User) (TeamExpensesResult, error) {
	teams, err := s.teamRepo.ListByManager(ctx, manager.CompanyID, manager.ID)
	if err != nil {
		return TeamExpensesResult{}, fmt.Errorf("failed to list teams: %w", err)
	}
	if len(teams) == 0 {
		return TeamExpensesResult{}, fmt.Errorf("no teams managed by this user: %w", gorm.ErrRecordNotFound)
	}

	memberSet := make(map[uuid.UUID]bool)
	summaries := make([]TeamSummary, 0, len(teams))
	for _, team := range teams {
		for _, m := range team.Members {
			memberSet[m.ID] = true
		}
		summaries = append(summaries, TeamSummary{
			ID:          team.ID.String(),
			Name:        team.Name,
			MemberCount: len(team.Members),
		})
	}

	result, err := s.collectTeamExpenses(ctx, manager.CompanyID, memberSet)
	if err != nil {
		return TeamExpensesResult{}, err
	}
	result.Teams = summaries
	return result, nil
}

func (s *expenseService) GetTeamExpensesByID(ctx context.Context, teamID uuid.UUID, manager *model.User) (TeamExpensesResult, error) {
	team, err := s.teamRepo.FindByIDForManager(ctx, teamID, manager.CompanyID, manager.ID)
	if err != nil {
		return TeamExpensesResult{}, fmt.Errorf("team not found or not managed by you: %w", err)
	}

	memberSet := make(map[uuid.UUID]bool, len(team.Members))
	for _, m := range team.Members {
		memberSet[m.ID] = true
	}

	result, err := s.collectTeamExpenses(ctx, manager.CompanyID, memberSet)
	if err != nil {
		return TeamExpensesResult{}, err
	}
	result.Teams = []TeamSummary{{
		ID:          team.ID.String(),
		Name:        team.Name,
		MemberCount: len(team.Members),
	}}
	return result, nil
}

func (s *expenseService) collectTeamExpenses(ctx context.Context, companyID uuid.UUID, memberSet map[uuid.UUID]bool) (TeamExpensesResult, error) {
	memberIDs := make([]uuid.UUID, 0, len(memberSet))
	for id := range memberSet {
		memberIDs = append(memberIDs, id)
	}

	expenses, err := s.expenseRepo.ListByEmployees(ctx, companyID, memberIDs)
	if err != nil {
		return TeamExpensesResult{}, fmt.Errorf("failed to list team expenses: %w", err)
	}

	total := decimal.Zero
	responses := make([]ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		total = total.Add(expenses[i].ConvertedAmount)
		responses = append(responses, toExpenseResponse(&expenses[i]))
	}

	return TeamExpensesResult{
		TotalExpenses: total.StringFixed(2),
		Expenses:      responses,
	}, nil
}

// --- Helpers ---

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func toExpenseResponse(e *model.Expense) ExpenseResponse {
	resp := ExpenseResponse{
		ID:              e.ID.String(),
		EmployeeID:      e.EmployeeID.String(),
		Amount:          e.Amount.String(),
		Currency:        e.Currency,
		ConvertedAmount: e.ConvertedAmount.String(),
		Category:        e.Category,
		Description:     e.Description,
		Date:            e.Date.Format("2006-01-02"),
		ReceiptURL:      e.ReceiptURL,
		Status:          e.Status,
		ApprovalHistory: make([]ApprovalHistoryEntry, 0, len(e.ApprovalHistory)),
	}
	if e.Employee != nil {
		resp.EmployeeName = e.Employee.Name
	}
	if e.ApprovalFlowID != nil {
		id := e.ApprovalFlowID.String()
		resp.ApprovalFlowID = &id
	}
	for _, h := range e.ApprovalHistory {
		resp.ApprovalHistory = append(resp.ApprovalHistory, ApprovalHistoryEntry{
			ApproverID: h.ApproverID.String(),
			Decision:   h.Decision,
			Comment:    h.Comment,
			Timestamp:  h.Timestamp.Format(time.RFC3339),
		})
	}
	return resp
}
