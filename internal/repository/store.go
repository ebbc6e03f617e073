package repository

import (
	"context"
	"time"

	"github.com/bugmaker2/Inspector/internal/model"
)

// Store is the persistence surface used by the monitors and the summarizer.
// Lookups by id return (nil, nil) when the row does not exist.
type Store interface {
	// Transaction runs fn against a transactional Store. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error

	GetMember(ctx context.Context, id uint) (*model.Member, error)

	GetActiveProfile(ctx context.Context, id uint) (*model.SocialProfile, error)
	ListActiveProfiles(ctx context.Context) ([]model.SocialProfile, error)
	ListProfilesDueForCheck(ctx context.Context, cutoff time.Time) ([]model.SocialProfile, error)
	CountActiveProfiles(ctx context.Context, platform string) (int64, error)
	TouchProfile(ctx context.Context, id uint, checkedAt time.Time) error

	ActivityExists(ctx context.Context, profileID uint, externalID string) (bool, error)
	CreateActivity(ctx context.Context, activity *model.Activity) error
	CountActivitiesSince(ctx context.Context, since time.Time) (int64, error)
	ListActivitiesInRange(ctx context.Context, q ActivityQuery) ([]model.Activity, error)
	ListActivities(ctx context.Context, f ActivityFilter) ([]model.Activity, error)

	CreateSummary(ctx context.Context, summary *model.Summary) error
	GetSummary(ctx context.Context, id uint) (*model.Summary, error)
	ListSummaries(ctx context.Context, f SummaryFilter) ([]model.Summary, error)
	MarkSummarySent(ctx context.Context, id uint, sentAt time.Time) error
}

// ActivityQuery selects activities created within [Start, End], newest first.
type ActivityQuery struct {
	Start    time.Time
	End      time.Time
	MemberID *uint
}

// ActivityFilter pages through the activity feed.
type ActivityFilter struct {
	Platform string
	MemberID *uint
	Offset   int
	Limit    int
}

// SummaryFilter pages through stored summaries.
type SummaryFilter struct {
	Type   string
	Offset int
	Limit  int
}
