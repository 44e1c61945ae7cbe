package model

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalFlow is the workflow instance for exactly one expense. The ordered
// Sequence rows hold the approvers eligible to decide; Approvals records each
// decision at most once per approver. Version backs the optimistic lock on
// decision submission.
type ApprovalFlow struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"expense_id"`
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Percentage   int       `gorm:"not null;default:100" json:"percentage"`
	IsSequential bool      `gorm:"default:false" json:"is_sequential"`
	CurrentStep  int       `gorm:"not null;default:1" json:"current_step"`
	Status       string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Version      int       `gorm:"not null;default:0" json:"-"`

	Steps     []ApprovalStep     `gorm:"foreignKey:FlowID" json:"steps"`
	Sequence  []SequenceApprover `gorm:"foreignKey:FlowID" json:"sequence"`
	Approvals []ApprovalDecision `gorm:"foreignKey:FlowID" json:"approvals"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalStep is descriptive metadata about the pipeline shape.
type ApprovalStep struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	FlowID     uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	StepNumber int       `gorm:"not null" json:"step_number"`
	Role       string    `gorm:"type:varchar(50);not null" json:"role"`
}

// SequenceApprover is one ordered entry in a flow's approver sequence.
type SequenceApprover struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	FlowID     uuid.UUID `gorm:"type:uuid;not null;index:idx_flow_position;index:idx_flow_approver,unique" json:"-"`
	Position   int       `gorm:"not null;index:idx_flow_position" json:"position"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null;index:idx_flow_approver,unique" json:"approver_id"`
	IsRequired bool      `gorm:"default:false" json:"is_required"`
}

// ApprovalDecision is one approver's recorded decision on a flow. The unique
// (flow_id, approver_id) index enforces the at-most-one-decision invariant at
// the database level as well.
type ApprovalDecision struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	FlowID     uuid.UUID `gorm:"type:uuid;not null;index:idx_decision_flow_approver,unique" json:"-"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null;index:idx_decision_flow_approver,unique" json:"approver_id"`
	Decision   string    `gorm:"type:varchar(20);not null" json:"decision"`
	Comment    string    `gorm:"type:text" json:"comment"`
	DecidedAt  time.Time `gorm:"not null" json:"timestamp"`
}
