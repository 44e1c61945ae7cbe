package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseStatus enum constants
const (
	ExpensePending     = "PENDING"
	ExpenseUnderReview = "UNDER_REVIEW"
	ExpenseApproved    = "APPROVED"
	ExpenseRejected    = "REJECTED"
)

// Expense represents a single reimbursement claim submitted by an employee.
// Amounts are stored both in the original currency and converted to the
// company base currency at submission time.
type Expense struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EmployeeID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"employee_id"`
	Employee        *User           `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	CompanyID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(10);not null" json:"currency"`
	ConvertedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"converted_amount"` // In company base currency
	Category        string          `gorm:"type:varchar(100)" json:"category"`
	Description     string          `gorm:"type:text" json:"description"`
	Date            time.Time       `json:"date"`
	ReceiptURL      string          `gorm:"type:text" json:"receipt_url"`
	Status          string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ApprovalFlowID  *uuid.UUID      `gorm:"type:uuid;index" json:"approval_flow_id"`

	// ApprovalHistory is append-only; entries are written in the same
	// transaction as the flow mutation that produced them.
	ApprovalHistory []ApprovalHistoryEntry `gorm:"foreignKey:ExpenseID" json:"approval_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalHistoryEntry is one recorded approver action on an expense.
type ApprovalHistoryEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID  uuid.UUID `gorm:"type:uuid;not null;index" json:"expense_id"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null" json:"approver_id"`
	Decision   string    `gorm:"type:varchar(20);not null" json:"decision"`
	Comment    string    `gorm:"type:text" json:"comment"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
}
