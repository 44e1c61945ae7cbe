package handler

import (
	"errors"
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/workflow"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExpenseHandler struct {
	expenseService    service.ExpenseService
	approvalService   service.ApprovalService
	statisticsService service.StatisticsService
	userRepo          repository.UserRepository
}

func NewExpenseHandler(
	expenseService service.ExpenseService,
	approvalService service.ApprovalService,
	statisticsService service.StatisticsService,
	userRepo repository.UserRepository,
) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService:    expenseService,
		approvalService:   approvalService,
		statisticsService: statisticsService,
		userRepo:          userRepo,
	}
}

func (h *ExpenseHandler) RegisterRoutes(router *gin.RouterGroup) {
	expenses := router.Group("/expenses")
	{
		expenses.POST("", middleware.RequireRole(h.userRepo), h.SubmitExpense)
		expenses.GET("/mine", middleware.RequireRole(h.userRepo), h.GetMyExpenses)
		expenses.GET("/statistics", middleware.RequireRole(h.userRepo, model.RoleAdmin), h.GetStatistics)
		expenses.GET("/team", middleware.RequireRole(h.userRepo, model.RoleManager, model.RoleAdmin), h.GetTeamExpenses)
		expenses.GET("/team/:teamId", middleware.RequireRole(h.userRepo, model.RoleManager, model.RoleAdmin), h.GetTeamExpensesByID)
		expenses.GET("/:id", middleware.RequireRole(h.userRepo), h.GetExpenseByID)
		expenses.POST("/:id/override", middleware.RequireRole(h.userRepo, model.RoleAdmin), h.OverrideExpense)
	}
}

// SubmitExpense handles POST /expenses: creation, conversion and flow seeding
// @Summary      Submit an expense
// @Description  Creates an expense, converts the amount to the company currency and seeds its approval flow
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitExpenseRequest  true  "Expense Payload"
// @Success      201      {object}  response.Response{data=service.SubmitExpenseResult}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /expenses [post]
func (h *ExpenseHandler) SubmitExpense(c *gin.Context) {
	employee, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	var req service.SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.expenseService.SubmitExpense(c.Request.Context(), employee, req)
	if err != nil {
		if errors.Is(err, workflow.ErrNoApprovers) {
			c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, "No eligible approvers could be resolved for this expense"))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// GetMyExpenses handles GET /expenses/mine
// @Summary      List my expenses
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.ExpenseResponse}
// @Router       /expenses/mine [get]
func (h *ExpenseHandler) GetMyExpenses(c *gin.Context) {
	employee, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	expenses, err := h.expenseService.GetMyExpenses(c.Request.Context(), employee)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, expenses))
}

// GetExpenseByID handles GET /expenses/:id
// @Summary      Get expense detail
// @Description  Returns an expense with its approval flow. Owner or Admin only.
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Expense ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /expenses/{id} [get]
func (h *ExpenseHandler) GetExpenseByID(c *gin.Context) {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid expense ID"))
		return
	}

	expense, flow, err := h.expenseService.GetExpenseByID(c.Request.Context(), expenseID, requester)
	if err != nil {
		if errors.Is(err, workflow.ErrNotAuthorized) {
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
			return
		}
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Expense not found"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"expense":       expense,
		"approval_flow": flow,
	}))
}

// GetTeamExpenses handles GET /expenses/team for all teams of the manager
// @Summary      Team expenses roll-up
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.TeamExpensesResult}
// @Failure      404  {object}  response.Response
// @Router       /expenses/team [get]
func (h *ExpenseHandler) GetTeamExpenses(c *gin.Context) {
	manager, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	result, err := h.expenseService.GetTeamExpenses(c.Request.Context(), manager)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "No teams managed by this user"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetTeamExpensesByID handles GET /expenses/team/:teamId
// @Summary      Single team expenses roll-up
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        teamId  path      string  true  "Team ID"
// @Success      200     {object}  response.Response{data=service.TeamExpensesResult}
// @Failure      404     {object}  response.Response
// @Router       /expenses/team/{teamId} [get]
func (h *ExpenseHandler) GetTeamExpensesByID(c *gin.Context) {
	manager, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid team ID"))
		return
	}

	result, err := h.expenseService.GetTeamExpensesByID(c.Request.Context(), teamID, manager)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// OverrideExpense handles POST /expenses/:id/override closing the flow directly
// @Summary      Admin override
// @Description  Closes the expense's approval flow with a terminal decision, bypassing the sequence
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Expense ID"
// @Param        payload  body      service.DecisionRequest  true  "Override Decision"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /expenses/{id}/override [post]
func (h *ExpenseHandler) OverrideExpense(c *gin.Context) {
	admin, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid expense ID"))
		return
	}

	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.approvalService.Override(c.Request.Context(), expenseID, admin, req)
	if err != nil {
		status := approvalErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetStatistics handles GET /expenses/statistics
// @Summary      Company spend statistics
// @Description  Aggregates company expenses by status and category for a date range
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query     string  false  "Start date (YYYY-MM-DD, default 30 days ago)"
// @Param        end_date    query     string  false  "End date (YYYY-MM-DD, default today)"
// @Success      200         {object}  response.Response{data=service.StatisticsResponse}
// @Failure      400         {object}  response.Response
// @Router       /expenses/statistics [get]
func (h *ExpenseHandler) GetStatistics(c *gin.Context) {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)
	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD"))
			return
		}
		start = parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD"))
			return
		}
		// Inclusive end of day
		end = parsed.Add(24*time.Hour - time.Nanosecond)
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), requester, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
