package model

import "time"

// Member represents a team member whose social activity is monitored
type Member struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null;index"`
	Email      string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Position   string    `json:"position" gorm:"type:varchar(100)"`
	Department string    `json:"department" gorm:"type:varchar(100)"`
	IsActive   bool      `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	SocialProfiles []SocialProfile `json:"social_profiles,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Activities     []Activity      `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Member
func (Member) TableName() string {
	return "members"
}
