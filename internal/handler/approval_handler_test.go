package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backend/internal/model"
	"backend/internal/service"
	"backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubApprovalService struct {
	submitErrs []error // consumed one per SubmitDecision call
	submitN    int
	statusErr  error
	pending    []service.PendingApproval
	result     service.DecisionResult
}

func (s *stubApprovalService) GetApprovalStatus(ctx context.Context, expenseID uuid.UUID, requester *model.User) (service.FlowResponse, error) {
	if s.statusErr != nil {
		return service.FlowResponse{}, s.statusErr
	}
	return s.result.Flow, nil
}

func (s *stubApprovalService) ListPendingApprovals(ctx context.Context, approver *model.User) ([]service.PendingApproval, error) {
	return s.pending, nil
}

func (s *stubApprovalService) SubmitDecision(ctx context.Context, expenseID uuid.UUID, approver *model.User, req service.DecisionRequest) (service.DecisionResult, error) {
	var err error
	if s.submitN < len(s.submitErrs) {
		err = s.submitErrs[s.submitN]
	}
	s.submitN++
	if err != nil {
		return service.DecisionResult{}, err
	}
	return s.result, nil
}

func (s *stubApprovalService) Override(ctx context.Context, expenseID uuid.UUID, admin *model.User, req service.DecisionRequest) (service.DecisionResult, error) {
	return s.result, nil
}

func newApprovalRouter(svc service.ApprovalService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	user := &model.User{ID: uuid.New(), Role: model.RoleManager, CompanyID: uuid.New()}
	router.Use(func(c *gin.Context) {
		c.Set("currentUser", user)
		c.Next()
	})

	h := &ApprovalHandler{approvalService: svc}
	router.GET("/approvals/pending", h.ListPending)
	router.GET("/approvals/:expenseId", h.GetStatus)
	router.POST("/approvals/:expenseId/decision", h.SubmitDecision)
	return router
}

func postDecision(t *testing.T, router *gin.Engine, expenseID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/approvals/"+expenseID+"/decision", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitDecisionSuccess(t *testing.T) {
	stub := &stubApprovalService{
		result: service.DecisionResult{
			Flow:          service.FlowResponse{Status: workflow.StatusApproved},
			ExpenseStatus: model.ExpenseApproved,
		},
	}
	router := newApprovalRouter(stub)

	w := postDecision(t, router, uuid.NewString(), `{"decision":"APPROVED","comment":"ok"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.submitN)

	var envelope struct {
		Status string                 `json:"status"`
		Data   service.DecisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "success", envelope.Status)
	assert.Equal(t, workflow.StatusApproved, envelope.Data.Flow.Status)
	assert.Equal(t, model.ExpenseApproved, envelope.Data.ExpenseStatus)
}

func TestSubmitDecisionErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not in sequence", workflow.ErrNotAuthorized, http.StatusForbidden},
		{"already decided", workflow.ErrDuplicateDecision, http.StatusBadRequest},
		{"flow closed", workflow.ErrFlowClosed, http.StatusBadRequest},
		{"flow missing", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"inconsistent state", workflow.ErrInconsistentState, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubApprovalService{submitErrs: []error{tt.err}}
			router := newApprovalRouter(stub)

			w := postDecision(t, router, uuid.NewString(), `{"decision":"APPROVED"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSubmitDecisionRetriesOnceOnConflict(t *testing.T) {
	stub := &stubApprovalService{
		submitErrs: []error{workflow.ErrConcurrentModification},
		result: service.DecisionResult{
			Flow:          service.FlowResponse{Status: workflow.StatusInProgress},
			ExpenseStatus: model.ExpenseUnderReview,
		},
	}
	router := newApprovalRouter(stub)

	w := postDecision(t, router, uuid.NewString(), `{"decision":"APPROVED"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, stub.submitN, "expected one retry after the version conflict")
}

func TestSubmitDecisionSecondConflictIs409(t *testing.T) {
	stub := &stubApprovalService{
		submitErrs: []error{workflow.ErrConcurrentModification, workflow.ErrConcurrentModification},
	}
	router := newApprovalRouter(stub)

	w := postDecision(t, router, uuid.NewString(), `{"decision":"APPROVED"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2, stub.submitN)
}

func TestSubmitDecisionRejectsInvalidPayload(t *testing.T) {
	stub := &stubApprovalService{}
	router := newApprovalRouter(stub)

	w := postDecision(t, router, uuid.NewString(), `{"decision":"MAYBE"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, stub.submitN, "invalid payloads must not reach the service")
}

func TestSubmitDecisionRejectsInvalidExpenseID(t *testing.T) {
	router := newApprovalRouter(&stubApprovalService{})

	w := postDecision(t, router, "not-a-uuid", `{"decision":"APPROVED"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatusMapsAuthorization(t *testing.T) {
	stub := &stubApprovalService{statusErr: workflow.ErrNotAuthorized}
	router := newApprovalRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/approvals/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListPendingShape(t *testing.T) {
	stub := &stubApprovalService{
		pending: []service.PendingApproval{
			{
				Expense: service.ExpenseResponse{Status: model.ExpenseUnderReview},
				Flow:    service.FlowResponse{Status: workflow.StatusInProgress, CurrentStep: 2},
			},
		},
	}
	router := newApprovalRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/approvals/pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []service.PendingApproval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, workflow.StatusInProgress, envelope.Data[0].Flow.Status)
	assert.Equal(t, 2, envelope.Data[0].Flow.CurrentStep)
}
