package service

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

type CreateTeamRequest struct {
	Name      string   `json:"name" binding:"required"`
	ManagerID string   `json:"manager_id"` // Defaults to the creating manager
	MemberIDs []string `json:"member_ids"`
}

type TeamResponse struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	ManagerID uuid.UUID      `json:"manager_id"`
	Members   []UserResponse `json:"members"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, creator *model.User, req CreateTeamRequest) (*TeamResponse, error)
	ListTeams(ctx context.Context, manager *model.User) ([]TeamResponse, error)
}

type teamService struct {
	teamRepo  repository.TeamRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewTeamService(
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) TeamService {
	return &teamService{
		teamRepo:  teamRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, creator *model.User, req CreateTeamRequest) (*TeamResponse, error) {
	managerID := creator.ID
	if req.ManagerID != "" {
		parsed, err := uuid.Parse(req.ManagerID)
		if err != nil {
			return nil, errors.New("invalid manager_id")
		}
		manager, err := s.userRepo.GetByIDInCompany(ctx, parsed, creator.CompanyID)
		if err != nil {
			return nil, errors.New("manager not found in company")
		}
		if manager.Role == model.RoleEmployee {
			return nil, errors.New("team manager must hold a managerial role")
		}
		managerID = parsed
	}

	members := make([]model.User, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid member id %q", raw)
		}
		member, err := s.userRepo.GetByIDInCompany(ctx, id, creator.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("member %s not found in company", raw)
		}
		members = append(members, *member)
	}

	team := &model.Team{
		Name:      req.Name,
		CompanyID: creator.CompanyID,
		ManagerID: managerID,
		Members:   members,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.teamRepo.Create(txCtx, team); err != nil {
			return err
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &creator.ID,
			Action:     model.ActionCreateTeam,
			EntityID:   team.ID.String(),
			EntityName: team.Name,
			Details:    fmt.Sprintf(`{"members":%d}`, len(members)),
		})
	})
	if err != nil {
		return nil, err
	}

	return mapToTeamResponse(team), nil
}

func (s *teamService) ListTeams(ctx context.Context, manager *model.User) ([]TeamResponse, error) {
	teams, err := s.teamRepo.ListByManager(ctx, manager.CompanyID, manager.ID)
	if err != nil {
		return nil, err
	}

	responses := make([]TeamResponse, 0, len(teams))
	for i := range teams {
		responses = append(responses, *mapToTeamResponse(&teams[i]))
	}
	return responses, nil
}

func mapToTeamResponse(team *model.Team) *TeamResponse {
	members := make([]UserResponse, 0, len(team.Members))
	for i := range team.Members {
		members = append(members, *mapToUserResponse(&team.Members[i]))
	}
	return &TeamResponse{
		ID:        team.ID,
		Name:      team.Name,
		ManagerID: team.ManagerID,
		Members:   members,
	}
}
