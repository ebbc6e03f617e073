package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bugmaker2/Inspector/internal/model"
)

const defaultPageSize = 100

// Repository is the gorm backed Store.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("SELECT 1").Error
}

func (r *Repository) GetMember(ctx context.Context, id uint) (*model.Member, error) {
	var member model.Member
	result := r.db.WithContext(ctx).First(&member, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get member %d: %w", id, result.Error)
	}
	return &member, nil
}

func (r *Repository) GetActiveProfile(ctx context.Context, id uint) (*model.SocialProfile, error) {
	var profile model.SocialProfile
	result := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&profile)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get profile %d: %w", id, result.Error)
	}
	return &profile, nil
}

func (r *Repository) ListActiveProfiles(ctx context.Context) ([]model.SocialProfile, error) {
	var profiles []model.SocialProfile
	result := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&profiles)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", result.Error)
	}
	return profiles, nil
}

func (r *Repository) ListProfilesDueForCheck(ctx context.Context, cutoff time.Time) ([]model.SocialProfile, error) {
	var profiles []model.SocialProfile
	result := r.db.WithContext(ctx).
		Where("is_active = ? AND (last_checked IS NULL OR last_checked <= ?)", true, cutoff.UTC()).
		Order("id").
		Find(&profiles)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list profiles due for check: %w", result.Error)
	}
	return profiles, nil
}

func (r *Repository) CountActiveProfiles(ctx context.Context, platform string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.SocialProfile{}).Where("is_active = ?", true)
	if platform != "" {
		q = q.Where("LOWER(platform) = ?", strings.ToLower(platform))
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

func (r *Repository) TouchProfile(ctx context.Context, id uint, checkedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.SocialProfile{}).Where("id = ?", id).Update("last_checked", checkedAt.UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to update last_checked for profile %d: %w", id, result.Error)
	}
	return nil
}

func (r *Repository) ActivityExists(ctx context.Context, profileID uint, externalID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&model.Activity{}).
		Where("social_profile_id = ? AND external_id = ?", profileID, externalID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("database error checking activity %s: %w", externalID, result.Error)
	}
	return count > 0, nil
}

func (r *Repository) CreateActivity(ctx context.Context, activity *model.Activity) error {
	if err := r.db.WithContext(ctx).Create(activity).Error; err != nil {
		return fmt.Errorf("failed to create activity %s: %w", activity.ExternalID, err)
	}
	return nil
}

func (r *Repository) CountActivitiesSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Activity{}).Where("created_at >= ?", since.UTC()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

func (r *Repository) ListActivitiesInRange(ctx context.Context, q ActivityQuery) ([]model.Activity, error) {
	var activities []model.Activity
	tx := r.db.WithContext(ctx).Where("created_at >= ? AND created_at <= ?", q.Start.UTC(), q.End.UTC())
	if q.MemberID != nil {
		tx = tx.Where("member_id = ?", *q.MemberID)
	}
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activities in range: %w", err)
	}
	return activities, nil
}

func (r *Repository) ListActivities(ctx context.Context, f ActivityFilter) ([]model.Activity, error) {
	var activities []model.Activity
	tx := r.db.WithContext(ctx)
	if f.Platform != "" {
		tx = tx.Where("LOWER(platform) = ?", strings.ToLower(f.Platform))
	}
	if f.MemberID != nil {
		tx = tx.Where("member_id = ?", *f.MemberID)
	}
	if err := tx.Order("created_at DESC").Order("id DESC").Offset(f.Offset).Limit(pageSize(f.Limit)).Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (r *Repository) CreateSummary(ctx context.Context, summary *model.Summary) error {
	if err := r.db.WithContext(ctx).Create(summary).Error; err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	return nil
}

func (r *Repository) GetSummary(ctx context.Context, id uint) (*model.Summary, error) {
	var summary model.Summary
	result := r.db.WithContext(ctx).First(&summary, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get summary %d: %w", id, result.Error)
	}
	return &summary, nil
}

func (r *Repository) ListSummaries(ctx context.Context, f SummaryFilter) ([]model.Summary, error) {
	var summaries []model.Summary
	tx := r.db.WithContext(ctx)
	if f.Type != "" {
		tx = tx.Where("summary_type = ?", f.Type)
	}
	if err := tx.Order("created_at DESC").Order("id DESC").Offset(f.Offset).Limit(pageSize(f.Limit)).Find(&summaries).Error; err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

func (r *Repository) MarkSummarySent(ctx context.Context, id uint, sentAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Summary{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_sent": true, "sent_at": sentAt.UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to mark summary %d as sent: %w", id, result.Error)
	}
	return nil
}

func pageSize(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultPageSize
	}
	return limit
}
