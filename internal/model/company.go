package model

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant boundary. Every user, expense and approval flow is
// scoped to exactly one company; the base currency drives expense conversion.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Country   string    `gorm:"type:varchar(100)" json:"country"`
	Currency  string    `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	AdminID   uuid.UUID `gorm:"type:uuid;not null" json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalRule holds a company's configurable approval policy. At most one
// rule per company; companies without a rule fall back to the default policy
// (100% threshold, parallel, no required approvers).
type ApprovalRule struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"company_id"`
	Percentage        int       `gorm:"not null;default:100" json:"percentage"` // 0-100 approval threshold
	IsSequential      bool      `gorm:"default:false" json:"is_sequential"`
	RequiredApprovers []User    `gorm:"many2many:approval_rule_approvers;" json:"required_approvers"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
