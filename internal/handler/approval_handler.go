package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/workflow"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	userRepo        repository.UserRepository
}

func NewApprovalHandler(approvalService service.ApprovalService, userRepo repository.UserRepository) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, userRepo: userRepo}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/approvals")
	{
		approvals.GET("/pending", middleware.RequireRole(h.userRepo), h.ListPending)
		approvals.GET("/:expenseId", middleware.RequireRole(h.userRepo), h.GetStatus)
		approvals.POST("/:expenseId/decision", middleware.RequireRole(h.userRepo), h.SubmitDecision)
	}
}

// approvalErrorStatus maps workflow sentinel errors onto HTTP status codes.
func approvalErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrDuplicateDecision),
		errors.Is(err, workflow.ErrFlowClosed):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInconsistentState):
		return http.StatusInternalServerError
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// ListPending handles GET /approvals/pending for the approver's queue
// @Summary      Pending approvals
// @Description  Lists open approval flows where the caller is in the sequence and has not yet decided
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.PendingApproval}
// @Router       /approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	approver, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	pending, err := h.approvalService.ListPendingApprovals(c.Request.Context(), approver)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pending))
}

// GetStatus handles GET /approvals/:expenseId
// @Summary      Approval flow status
// @Description  Returns the approval flow projection for an expense
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        expenseId  path      string  true  "Expense ID"
// @Success      200        {object}  response.Response{data=service.FlowResponse}
// @Failure      403        {object}  response.Response
// @Failure      404        {object}  response.Response
// @Router       /approvals/{expenseId} [get]
func (h *ApprovalHandler) GetStatus(c *gin.Context) {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	expenseID, err := uuid.Parse(c.Param("expenseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid expense ID"))
		return
	}

	flow, err := h.approvalService.GetApprovalStatus(c.Request.Context(), expenseID, requester)
	if err != nil {
		if errors.Is(err, workflow.ErrNotAuthorized) {
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
			return
		}
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Approval flow not found"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, flow))
}

// SubmitDecision handles POST /approvals/:expenseId/decision
// @Summary      Submit an approval decision
// @Description  Records the caller's APPROVED or REJECTED decision on an expense's flow
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        expenseId  path      string                   true  "Expense ID"
// @Param        payload    body      service.DecisionRequest  true  "Decision Payload"
// @Success      200        {object}  response.Response{data=service.DecisionResult}
// @Failure      400        {object}  response.Response
// @Failure      403        {object}  response.Response
// @Failure      404        {object}  response.Response
// @Failure      409        {object}  response.Response
// @Router       /approvals/{expenseId}/decision [post]
func (h *ApprovalHandler) SubmitDecision(c *gin.Context) {
	approver, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	expenseID, err := uuid.Parse(c.Param("expenseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid expense ID"))
		return
	}

	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.approvalService.SubmitDecision(c.Request.Context(), expenseID, approver, req)
	if errors.Is(err, workflow.ErrConcurrentModification) {
		// A concurrent decision raced us. Retry once against the fresh state;
		// a second conflict surfaces as 409.
		result, err = h.approvalService.SubmitDecision(c.Request.Context(), expenseID, approver, req)
	}
	if err != nil {
		status := approvalErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
