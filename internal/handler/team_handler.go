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

type TeamHandler struct {
	teamService service.TeamService
	userRepo    repository.UserRepository
}

func NewTeamHandler(teamService service.TeamService, userRepo repository.UserRepository) *TeamHandler {
	return &TeamHandler{teamService: teamService, userRepo: userRepo}
}

func (h *TeamHandler) RegisterRoutes(router *gin.RouterGroup) {
	teams := router.Group("/teams")
	{
		teams.POST("", middleware.RequireRole(h.userRepo, model.RoleManager, model.RoleAdmin), h.CreateTeam)
		teams.GET("", middleware.RequireRole(h.userRepo, model.RoleManager, model.RoleAdmin), h.ListTeams)
	}
}

// CreateTeam handles POST /teams
// @Summary      Create a team
// @Description  Groups company employees under a manager for expense roll-up
// @Tags         teams
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTeamRequest  true  "Team Payload"
// @Success      201      {object}  response.Response{data=service.TeamResponse}
// @Failure      400      {object}  response.Response
// @Router       /teams [post]
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	creator, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	var req service.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), creator, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, team))
}

// ListTeams handles GET /teams for the caller's managed teams
// @Summary      List managed teams
// @Tags         teams
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.TeamResponse}
// @Router       /teams [get]
func (h *TeamHandler) ListTeams(c *gin.Context) {
	manager, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	teams, err := h.teamService.ListTeams(c.Request.Context(), manager)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, teams))
}
