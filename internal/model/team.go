package model

import (
	"time"

	"github.com/google/uuid"
)

// Team groups employees under a manager for expense roll-up reporting.
type Team struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	ManagerID uuid.UUID `gorm:"type:uuid;not null;index" json:"manager_id"`
	Manager   *User     `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Members   []User    `gorm:"many2many:team_members;" json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
