package model

import "time"

// Summary types.
const (
	SummaryDaily  = "daily"
	SummaryWeekly = "weekly"
	SummaryMember = "member"
	SummaryCustom = "custom"
)

// Summary is a persisted bilingual activity summary. Content holds the
// Chinese text, ContentEn the English one.
type Summary struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Title         string     `json:"title" gorm:"type:varchar(200);not null"`
	Content       string     `json:"content" gorm:"type:text;not null"`
	ContentEn     *string    `json:"content_en" gorm:"type:text"`
	SummaryType   string     `json:"summary_type" gorm:"type:varchar(50);not null;index"`
	StartDate     time.Time  `json:"start_date" gorm:"not null"`
	EndDate       time.Time  `json:"end_date" gorm:"not null"`
	MemberCount   int        `json:"member_count"`
	ActivityCount int        `json:"activity_count"`
	CreatedAt     time.Time  `json:"created_at"`
	IsSent        bool       `json:"is_sent"`
	SentAt        *time.Time `json:"sent_at"`
}

// TableName specifies the table name for Summary
func (Summary) TableName() string {
	return "summaries"
}
