package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// passThroughTx runs the function directly; the fakes below never fail
// partially, so rollback semantics reduce to "nothing after the error ran".
type passThroughTx struct{}

func (passThroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeFlowRepo struct {
	flow *model.ApprovalFlow

	// raceOnRead bumps the stored version right after serving a locked
	// read, modeling a writer that committed between our read and CAS.
	raceOnRead bool

	decisions    []model.ApprovalDecision
	stateUpdates int
}

func (f *fakeFlowRepo) Create(ctx context.Context, flow *model.ApprovalFlow) error { return nil }

func (f *fakeFlowRepo) FindByExpenseID(ctx context.Context, expenseID uuid.UUID) (*model.ApprovalFlow, error) {
	return f.flow, nil
}

func (f *fakeFlowRepo) FindByExpenseIDForUpdate(ctx context.Context, expenseID uuid.UUID) (*model.ApprovalFlow, error) {
	rec := *f.flow
	if f.raceOnRead {
		f.flow.Version++
		f.raceOnRead = false
	}
	return &rec, nil
}

func (f *fakeFlowRepo) ListOpenForApprover(ctx context.Context, companyID, approverID uuid.UUID) ([]model.ApprovalFlow, error) {
	return nil, nil
}

func (f *fakeFlowRepo) AppendDecision(ctx context.Context, decision *model.ApprovalDecision) error {
	f.decisions = append(f.decisions, *decision)
	return nil
}

// UpdateState mirrors the real compare-and-swap: a stale read version loses.
func (f *fakeFlowRepo) UpdateState(ctx context.Context, flowID uuid.UUID, readVersion int, status string, currentStep int) error {
	if readVersion != f.flow.Version {
		return workflow.ErrConcurrentModification
	}
	f.flow.Version++
	f.flow.Status = status
	f.flow.CurrentStep = currentStep
	f.stateUpdates++
	return nil
}

type fakeExpenseRepo struct {
	expense *model.Expense

	statusUpdates []string
	history       []model.ApprovalHistoryEntry
}

func (f *fakeExpenseRepo) Create(ctx context.Context, expense *model.Expense) error { return nil }

func (f *fakeExpenseRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	return f.expense, nil
}

func (f *fakeExpenseRepo) ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]model.Expense, error) {
	return nil, nil
}

func (f *fakeExpenseRepo) ListByEmployees(ctx context.Context, companyID uuid.UUID, employeeIDs []uuid.UUID) ([]model.Expense, error) {
	return nil, nil
}

func (f *fakeExpenseRepo) Update(ctx context.Context, expense *model.Expense) error { return nil }

func (f *fakeExpenseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	f.expense.Status = status
	return nil
}

func (f *fakeExpenseRepo) AppendHistory(ctx context.Context, entry *model.ApprovalHistoryEntry) error {
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeExpenseRepo) TotalsByStatus(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]repository.StatusTotal, error) {
	return nil, nil
}

func (f *fakeExpenseRepo) TotalsByCategory(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]repository.CategoryTotal, error) {
	return nil, nil
}

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (f *fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, companyID uuid.UUID, action string, page, limit int) ([]model.AuditLog, int64, error) {
	return nil, 0, nil
}

type decisionFixture struct {
	svc      ApprovalService
	flows    *fakeFlowRepo
	expenses *fakeExpenseRepo
	audits   *fakeAuditRepo
	expense  *model.Expense
	approver *model.User
}

func newDecisionFixture(t *testing.T, approverCount int) *decisionFixture {
	t.Helper()

	companyID := uuid.New()
	expense := &model.Expense{
		ID:         uuid.New(),
		EmployeeID: uuid.New(),
		CompanyID:  companyID,
		Status:     model.ExpensePending,
	}

	flow := &model.ApprovalFlow{
		ID:          uuid.New(),
		ExpenseID:   expense.ID,
		CompanyID:   companyID,
		Percentage:  100,
		CurrentStep: 1,
		Status:      workflow.StatusPending,
	}
	var users []*model.User
	for i := 0; i < approverCount; i++ {
		u := &model.User{ID: uuid.New(), CompanyID: companyID, Role: model.RoleManager}
		users = append(users, u)
		flow.Sequence = append(flow.Sequence, model.SequenceApprover{
			FlowID:     flow.ID,
			Position:   i + 1,
			ApproverID: u.ID,
		})
	}

	flows := &fakeFlowRepo{flow: flow}
	expenses := &fakeExpenseRepo{expense: expense}
	audits := &fakeAuditRepo{}

	fx := &decisionFixture{
		svc:      NewApprovalService(flows, expenses, audits, passThroughTx{}, nil, zap.NewNop()),
		flows:    flows,
		expenses: expenses,
		audits:   audits,
		expense:  expense,
		approver: users[0],
	}
	return fx
}

func TestSubmitDecisionClosesFlowAndExpenseTogether(t *testing.T) {
	fx := newDecisionFixture(t, 1)

	result, err := fx.svc.SubmitDecision(context.Background(), fx.expense.ID, fx.approver,
		DecisionRequest{Decision: "APPROVED", Comment: "lgtm"})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusApproved, result.Flow.Status)
	assert.Equal(t, model.ExpenseApproved, result.ExpenseStatus)

	// The synchronizer must have written the decision, the flow state, the
	// expense status and the history entry, all in the same transaction.
	require.Len(t, fx.flows.decisions, 1)
	assert.Equal(t, fx.approver.ID, fx.flows.decisions[0].ApproverID)
	assert.Equal(t, 1, fx.flows.stateUpdates)
	assert.Equal(t, []string{model.ExpenseApproved}, fx.expenses.statusUpdates)
	require.Len(t, fx.expenses.history, 1)
	assert.Equal(t, "lgtm", fx.expenses.history[0].Comment)

	require.Len(t, fx.audits.entries, 1)
	assert.Equal(t, model.ActionFlowApproved, fx.audits.entries[0].Action)
}

func TestSubmitDecisionOpenFlowMovesExpenseUnderReview(t *testing.T) {
	fx := newDecisionFixture(t, 2)

	result, err := fx.svc.SubmitDecision(context.Background(), fx.expense.ID, fx.approver,
		DecisionRequest{Decision: "APPROVED"})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusInProgress, result.Flow.Status)
	assert.Equal(t, model.ExpenseUnderReview, result.ExpenseStatus)
	assert.Equal(t, []string{model.ExpenseUnderReview}, fx.expenses.statusUpdates)
	assert.Equal(t, model.ActionApprovalDecision, fx.audits.entries[0].Action)
}

func TestSubmitDecisionStaleVersionWritesNothing(t *testing.T) {
	fx := newDecisionFixture(t, 1)

	// Another writer commits between our locked read and the CAS.
	fx.flows.raceOnRead = true

	_, err := fx.svc.SubmitDecision(context.Background(), fx.expense.ID, fx.approver,
		DecisionRequest{Decision: "APPROVED"})
	require.ErrorIs(t, err, workflow.ErrConcurrentModification)

	// The lost race surfaces before the expense is touched, so the aborted
	// transaction has no expense writes to roll back.
	assert.Empty(t, fx.expenses.statusUpdates)
	assert.Empty(t, fx.expenses.history)
	assert.Empty(t, fx.audits.entries)
}

func TestSubmitDecisionRejectsCrossCompanyApprover(t *testing.T) {
	fx := newDecisionFixture(t, 1)
	outsider := &model.User{ID: fx.approver.ID, CompanyID: uuid.New(), Role: model.RoleAdmin}

	_, err := fx.svc.SubmitDecision(context.Background(), fx.expense.ID, outsider,
		DecisionRequest{Decision: "APPROVED"})
	require.ErrorIs(t, err, workflow.ErrNotAuthorized)
	assert.Empty(t, fx.flows.decisions)
}
