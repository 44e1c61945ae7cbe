package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	companyService service.CompanyService
	userRepo       repository.UserRepository
}

func NewCompanyHandler(companyService service.CompanyService, userRepo repository.UserRepository) *CompanyHandler {
	return &CompanyHandler{companyService: companyService, userRepo: userRepo}
}

func (h *CompanyHandler) RegisterRoutes(router *gin.RouterGroup) {
	company := router.Group("/company")
	{
		company.GET("", middleware.RequireRole(h.userRepo), h.GetCompany)
		company.PUT("", middleware.RequireRole(h.userRepo, model.RoleAdmin), h.UpdateCompany)
		company.GET("/approval-rule", middleware.RequireRole(h.userRepo, model.RoleAdmin), h.GetApprovalRule)
		company.PUT("/approval-rule", middleware.RequireRole(h.userRepo, model.RoleAdmin), h.UpdateApprovalRule)
	}
}

// GetCompany handles GET /company
// @Summary      Get company
// @Tags         company
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.CompanyResponse}
// @Failure      404  {object}  response.Response
// @Router       /company [get]
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	company, err := h.companyService.GetCompany(c.Request.Context(), requester)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}

// UpdateCompany handles PUT /company
// @Summary      Update company
// @Description  Updates company name, country or base currency. Currency changes affect only future conversions.
// @Tags         company
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateCompanyRequest  true  "Company Payload"
// @Success      200      {object}  response.Response{data=service.CompanyResponse}
// @Failure      400      {object}  response.Response
// @Router       /company [put]
func (h *CompanyHandler) UpdateCompany(c *gin.Context) {
	admin, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	var req service.UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	company, err := h.companyService.UpdateCompany(c.Request.Context(), admin, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}

// GetApprovalRule handles GET /company/approval-rule
// @Summary      Get approval rule
// @Description  Returns the company's approval policy, or the defaults when none is configured
// @Tags         company
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ApprovalRuleResponse}
// @Router       /company/approval-rule [get]
func (h *CompanyHandler) GetApprovalRule(c *gin.Context) {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	rule, err := h.companyService.GetApprovalRule(c.Request.Context(), requester)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// UpdateApprovalRule handles PUT /company/approval-rule
// @Summary      Update approval rule
// @Description  Sets the approval threshold, sequential mode and required approvers. Affects only flows created afterwards.
// @Tags         company
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ApprovalRuleRequest  true  "Approval Rule Payload"
// @Success      200      {object}  response.Response{data=service.ApprovalRuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /company/approval-rule [put]
func (h *CompanyHandler) UpdateApprovalRule(c *gin.Context) {
	admin, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	var req service.ApprovalRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.companyService.UpdateApprovalRule(c.Request.Context(), admin, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}
