package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	Comment  string `json:"comment"`
}

// FlowResponse is the read-only projection of an approval flow.
type FlowResponse struct {
	WorkflowID        string             `json:"workflow_id"`
	ExpenseID         string             `json:"expense_id"`
	Steps             []StepResponse     `json:"steps"`
	Sequence          []string           `json:"sequence"`
	RequiredApprovers []string           `json:"required_approvers"`
	Percentage        int                `json:"percentage"`
	IsSequential      bool               `json:"is_sequential"`
	CurrentStep       int                `json:"currentStep"`
	Status            string             `json:"status"`
	Approvals         []DecisionResponse `json:"approvals"`
}

type StepResponse struct {
	StepNumber int    `json:"stepNumber"`
	Role       string `json:"role"`
}

type DecisionResponse struct {
	ApproverID string `json:"approverId"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment"`
	Timestamp  string `json:"timestamp"`
}

// DecisionResult is returned from a decision submission: the updated flow
// plus the owning expense's (possibly new) status.
type DecisionResult struct {
	Flow          FlowResponse `json:"approval_flow"`
	ExpenseStatus string       `json:"expense_status"`
}

// PendingApproval pairs an open flow with its expense for an approver's queue.
type PendingApproval struct {
	Expense ExpenseResponse `json:"expense"`
	Flow    FlowResponse    `json:"approval_flow"`
}

// --- Interface ---

type ApprovalService interface {
	// GetApprovalStatus returns the flow projection for an expense. Only the
	// expense owner, sequence members, and Admin/Manager roles may read it.
	GetApprovalStatus(ctx context.Context, expenseID uuid.UUID, requester *model.User) (FlowResponse, error)
	ListPendingApprovals(ctx context.Context, approver *model.User) ([]PendingApproval, error)
	// SubmitDecision records one approver decision and, when the flow closes,
	// synchronizes the owning expense in the same transaction.
	SubmitDecision(ctx context.Context, expenseID uuid.UUID, approver *model.User, req DecisionRequest) (DecisionResult, error)
	// Override lets an Admin close a flow directly, bypassing the sequence.
	Override(ctx context.Context, expenseID uuid.UUID, admin *model.User, req DecisionRequest) (DecisionResult, error)
}

type approvalService struct {
	flowRepo    repository.ApprovalFlowRepository
	expenseRepo repository.ExpenseRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *websocket.Hub
	logger      *zap.Logger
}

func NewApprovalService(
	flowRepo repository.ApprovalFlowRepository,
	expenseRepo repository.ExpenseRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *websocket.Hub,
	logger *zap.Logger,
) ApprovalService {
	return &approvalService{
		flowRepo:    flowRepo,
		expenseRepo: expenseRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
		logger:      logger,
	}
}

// --- Implementation ---

func (s *approvalService) GetApprovalStatus(ctx context.Context, expenseID uuid.UUID, requester *model.User) (FlowResponse, error) {
	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return FlowResponse{}, fmt.Errorf("expense not found: %w", err)
	}

	flow, err := s.flowRepo.FindByExpenseID(ctx, expenseID)
	if err != nil {
		return FlowResponse{}, fmt.Errorf("approval flow not found: %w", err)
	}

	if !s.canViewFlow(expense, flow, requester) {
		return FlowResponse{}, fmt.Errorf("access denied: %w", workflow.ErrNotAuthorized)
	}

	return toFlowResponse(flow), nil
}

func (s *approvalService) canViewFlow(expense *model.Expense, flow *model.ApprovalFlow, requester *model.User) bool {
	if expense.CompanyID != requester.CompanyID {
		return false
	}
	if expense.EmployeeID == requester.ID {
		return true
	}
	if requester.Role == model.RoleAdmin || requester.Role == model.RoleManager {
		return true
	}
	for _, sa := range flow.Sequence {
		if sa.ApproverID == requester.ID {
			return true
		}
	}
	return false
}

func (s *approvalService) ListPendingApprovals(ctx context.Context, approver *model.User) ([]PendingApproval, error) {
	flows, err := s.flowRepo.ListOpenForApprover(ctx, approver.CompanyID, approver.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open flows: %w", err)
	}

	pending := make([]PendingApproval, 0, len(flows))
	for i := range flows {
		flow := &flows[i]
		expense, err := s.expenseRepo.FindByID(ctx, flow.ExpenseID)
		if err != nil {
			// A flow without its expense is a data bug; skip but surface it.
			s.logger.Error("open approval flow has no expense",
				zap.String("flow_id", flow.ID.String()),
				zap.String("expense_id", flow.ExpenseID.String()),
				zap.Error(err))
			continue
		}
		pending = append(pending, PendingApproval{
			Expense: toExpenseResponse(expense),
			Flow:    toFlowResponse(flow),
		})
	}
	return pending, nil
}

func (s *approvalService) SubmitDecision(ctx context.Context, expenseID uuid.UUID, approver *model.User, req DecisionRequest) (DecisionResult, error) {
	var result DecisionResult

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		flowRec, err := s.flowRepo.FindByExpenseIDForUpdate(txCtx, expenseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("approval flow not found: %w", err)
			}
			return fmt.Errorf("failed to load approval flow: %w", err)
		}
		if flowRec.CompanyID != approver.CompanyID {
			return workflow.ErrNotAuthorized
		}

		now := time.Now().UTC()
		flow := toEngineFlow(flowRec)

		outcome, err := flow.Submit(approver.ID, req.Decision, req.Comment, now)
		if err != nil {
			return err
		}

		decision := &model.ApprovalDecision{
			FlowID:     flowRec.ID,
			ApproverID: approver.ID,
			Decision:   req.Decision,
			Comment:    req.Comment,
			DecidedAt:  now,
		}
		if err := s.flowRepo.AppendDecision(txCtx, decision); err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}

		if err := s.flowRepo.UpdateState(txCtx, flowRec.ID, flowRec.Version, outcome.Status, outcome.CurrentStep); err != nil {
			return err
		}

		expenseStatus, err := s.syncExpense(txCtx, flowRec.ExpenseID, approver.ID, req, outcome, now)
		if err != nil {
			return err
		}

		if err := s.auditDecision(txCtx, flowRec, approver.ID, req, outcome); err != nil {
			return err
		}

		flowRec.Approvals = append(flowRec.Approvals, *decision)
		flowRec.Status = outcome.Status
		flowRec.CurrentStep = outcome.CurrentStep
		result = DecisionResult{Flow: toFlowResponse(flowRec), ExpenseStatus: expenseStatus}
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	s.broadcast(expenseID, result.Flow.Status, approver.ID, req.Decision)
	return result, nil
}

func (s *approvalService) Override(ctx context.Context, expenseID uuid.UUID, admin *model.User, req DecisionRequest) (DecisionResult, error) {
	var result DecisionResult

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		flowRec, err := s.flowRepo.FindByExpenseIDForUpdate(txCtx, expenseID)
		if err != nil {
			return fmt.Errorf("approval flow not found: %w", err)
		}
		if flowRec.CompanyID != admin.CompanyID {
			return workflow.ErrNotAuthorized
		}
		if workflow.Terminal(flowRec.Status) {
			return workflow.ErrFlowClosed
		}

		now := time.Now().UTC()
		outcome := workflow.Outcome{Status: req.Decision, CurrentStep: flowRec.CurrentStep}

		if err := s.flowRepo.UpdateState(txCtx, flowRec.ID, flowRec.Version, outcome.Status, outcome.CurrentStep); err != nil {
			return err
		}

		expenseStatus, err := s.syncExpense(txCtx, flowRec.ExpenseID, admin.ID, req, outcome, now)
		if err != nil {
			return err
		}

		details, _ := json.Marshal(map[string]interface{}{
			"decision": req.Decision,
			"comment":  req.Comment,
		})
		adminID := admin.ID
		audit := &model.AuditLog{
			UserID:     &adminID,
			Action:     model.ActionAdminOverride,
			EntityID:   flowRec.ID.String(),
			EntityName: "ApprovalFlow",
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		flowRec.Status = outcome.Status
		result = DecisionResult{Flow: toFlowResponse(flowRec), ExpenseStatus: expenseStatus}
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	s.broadcast(expenseID, result.Flow.Status, admin.ID, req.Decision)
	return result, nil
}

// syncExpense propagates a flow outcome onto the owning expense: terminal
// outcomes copy the status, an opened flow moves the expense to UNDER_REVIEW.
// Runs inside the flow's transaction.
func (s *approvalService) syncExpense(ctx context.Context, expenseID, approverID uuid.UUID, req DecisionRequest, outcome workflow.Outcome, now time.Time) (string, error) {
	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return "", fmt.Errorf("flow exists without its expense: %w", workflow.ErrInconsistentState)
	}

	entry := &model.ApprovalHistoryEntry{
		ExpenseID:  expense.ID,
		ApproverID: approverID,
		Decision:   req.Decision,
		Comment:    req.Comment,
		Timestamp:  now,
	}
	if err := s.expenseRepo.AppendHistory(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to append approval history: %w", err)
	}

	status := model.ExpenseUnderReview
	if workflow.Terminal(outcome.Status) {
		status = outcome.Status
	}
	if err := s.expenseRepo.UpdateStatus(ctx, expense.ID, status); err != nil {
		return "", fmt.Errorf("failed to update expense status: %w", err)
	}

	return status, nil
}

func (s *approvalService) auditDecision(ctx context.Context, flowRec *model.ApprovalFlow, approverID uuid.UUID, req DecisionRequest, outcome workflow.Outcome) error {
	details, _ := json.Marshal(map[string]interface{}{
		"expense_id": flowRec.ExpenseID.String(),
		"decision":   req.Decision,
		"comment":    req.Comment,
		"status":     outcome.Status,
	})
	action := model.ActionApprovalDecision
	switch outcome.Status {
	case workflow.StatusApproved:
		action = model.ActionFlowApproved
	case workflow.StatusRejected:
		action = model.ActionFlowRejected
	}
	userID := approverID
	audit := &model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   flowRec.ID.String(),
		EntityName: "ApprovalFlow",
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// broadcast pushes a flow event to connected websocket clients. Best effort;
// runs after the transaction committed.
func (s *approvalService) broadcast(expenseID uuid.UUID, status string, approverID uuid.UUID, decision string) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]string{
		"event":       "approval_flow",
		"expense_id":  expenseID.String(),
		"status":      status,
		"approver_id": approverID.String(),
		"decision":    decision,
	})
	if err != nil {
		return
	}
	select {
	case s.hub.Broadcast <- msg:
	default:
		s.logger.Warn("websocket broadcast dropped", zap.String("expense_id", expenseID.String()))
	}
}

// --- Helpers ---

// toEngineFlow maps a stored flow into the pure engine representation.
func toEngineFlow(rec *model.ApprovalFlow) *workflow.Flow {
	f := &workflow.Flow{
		Percentage:  rec.Percentage,
		Sequential:  rec.IsSequential,
		CurrentStep: rec.CurrentStep,
		Status:      rec.Status,
	}
	for _, sa := range rec.Sequence {
		f.Sequence = append(f.Sequence, sa.ApproverID)
		if sa.IsRequired {
			f.Required = append(f.Required, sa.ApproverID)
		}
	}
	for _, a := range rec.Approvals {
		f.Approvals = append(f.Approvals, workflow.Approval{
			ApproverID: a.ApproverID,
			Decision:   a.Decision,
			Comment:    a.Comment,
			DecidedAt:  a.DecidedAt,
		})
	}
	return f
}

func toFlowResponse(rec *model.ApprovalFlow) FlowResponse {
	resp := FlowResponse{
		WorkflowID:        rec.ID.String(),
		ExpenseID:         rec.ExpenseID.String(),
		Percentage:        rec.Percentage,
		IsSequential:      rec.IsSequential,
		CurrentStep:       rec.CurrentStep,
		Status:            rec.Status,
		Steps:             make([]StepResponse, 0, len(rec.Steps)),
		Sequence:          make([]string, 0, len(rec.Sequence)),
		RequiredApprovers: []string{},
		Approvals:         make([]DecisionResponse, 0, len(rec.Approvals)),
	}
	for _, st := range rec.Steps {
		resp.Steps = append(resp.Steps, StepResponse{StepNumber: st.StepNumber, Role: st.Role})
	}
	for _, sa := range rec.Sequence {
		resp.Sequence = append(resp.Sequence, sa.ApproverID.String())
		if sa.IsRequired {
			resp.RequiredApprovers = append(resp.RequiredApprovers, sa.ApproverID.String())
		}
	}
	for _, a := range rec.Approvals {
		resp.Approvals = append(resp.Approvals, DecisionResponse{
			ApproverID: a.ApproverID.String(),
			Decision:   a.Decision,
			Comment:    a.Comment,
			Timestamp:  a.DecidedAt.Format(time.RFC3339),
		})
	}
	return resp
}
