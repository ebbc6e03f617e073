package model

import "time"

// Activity is a single platform event discovered while monitoring a profile.
// Rows are never updated after creation.
type Activity struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	MemberID        uint       `json:"member_id" gorm:"not null;index"`
	SocialProfileID uint       `json:"social_profile_id" gorm:"not null;uniqueIndex:idx_activity_profile_external,priority:1"`
	Platform        string     `json:"platform" gorm:"type:varchar(50);not null;index"`
	ActivityType    string     `json:"activity_type" gorm:"type:varchar(50);not null"`
	Title           string     `json:"title" gorm:"type:varchar(500)"`
	Content         string     `json:"content" gorm:"type:text"`
	URL             string     `json:"url" gorm:"type:varchar(500)"`
	ExternalID      string     `json:"external_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_activity_profile_external,priority:2"`
	PublishedAt     *time.Time `json:"published_at"`
	CreatedAt       time.Time  `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for Activity
func (Activity) TableName() string {
	return "activities"
}
