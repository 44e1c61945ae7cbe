package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSignup             = "SIGNUP"
	ActionCreateUser         = "CREATE_USER"
	ActionUpdateUser         = "UPDATE_USER"
	ActionResetPassword      = "RESET_PASSWORD"
	ActionUpdateCompany      = "UPDATE_COMPANY"
	ActionUpdateApprovalRule = "UPDATE_APPROVAL_RULE"
	ActionCreateTeam         = "CREATE_TEAM"

	// Expense workflow actions
	ActionSubmitExpense      = "SUBMIT_EXPENSE"
	ActionCreateApprovalFlow = "CREATE_APPROVAL_FLOW"
	ActionApprovalDecision   = "APPROVAL_DECISION"
	ActionFlowApproved       = "FLOW_APPROVED"
	ActionFlowRejected       = "FLOW_REJECTED"
	ActionAdminOverride      = "ADMIN_OVERRIDE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
