package model

import "time"

// Platform tags understood by the monitors.
const (
	PlatformGitHub   = "github"
	PlatformLinkedIn = "linkedin"
)

// SocialProfile is one member account on one platform. LastChecked is nil
// until the first successful monitoring pass.
type SocialProfile struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	MemberID    uint       `json:"member_id" gorm:"not null;index"`
	Platform    string     `json:"platform" gorm:"type:varchar(50);not null;index"`
	ProfileURL  string     `json:"profile_url" gorm:"type:varchar(500);not null"`
	Username    string     `json:"username" gorm:"type:varchar(100)"`
	IsActive    bool       `json:"is_active" gorm:"not null"`
	LastChecked *time.Time `json:"last_checked"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Activities []Activity `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for SocialProfile
func (SocialProfile) TableName() string {
	return "social_profiles"
}
