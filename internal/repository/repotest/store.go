// Package repotest provides an in-memory repository.Store for tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/repository"
)

// Store keeps everything in maps. Transactions are serialized and rolled back
// by restoring a snapshot.
type Store struct {
	// Now stamps CreatedAt on inserted rows. Defaults to time.Now in UTC.
	Now func() time.Time

	// Injected failures.
	CreateActivityErr   error
	CreateSummaryErr    error
	ListProfilesErr     error
	ListActivitiesErr   error
	FailCreateAfterRows int

	txMu       sync.Mutex
	mu         sync.Mutex
	nextID     uint
	members    map[uint]model.Member
	profiles   map[uint]model.SocialProfile
	activities []model.Activity
	summaries  []model.Summary
	created    int
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		members:  make(map[uint]model.Member),
		profiles: make(map[uint]model.SocialProfile),
	}
}

type snapshot struct {
	nextID     uint
	members    map[uint]model.Member
	profiles   map[uint]model.SocialProfile
	activities []model.Activity
	summaries  []model.Summary
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// AddMember inserts m and returns the stored copy.
func (s *Store) AddMember(m model.Member) *model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.id()
	}
	s.members[m.ID] = m
	return &m
}

// AddProfile inserts p and returns the stored copy.
func (s *Store) AddProfile(p model.SocialProfile) *model.SocialProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.profiles[p.ID] = p
	return &p
}

// AddActivity inserts a without dedup checks, keeping a.CreatedAt when set.
func (s *Store) AddActivity(a model.Activity) *model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.activities = append(s.activities, a)
	return &a
}

// Profile returns a copy of the stored profile.
func (s *Store) Profile(id uint) model.SocialProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id]
}

// Activities returns a copy of every stored activity in insertion order.
func (s *Store) Activities() []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Activity(nil), s.activities...)
}

// Summaries returns a copy of every stored summary.
func (s *Store) Summaries() []model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Summary(nil), s.summaries...)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		nextID:     s.nextID,
		members:    make(map[uint]model.Member, len(s.members)),
		profiles:   make(map[uint]model.SocialProfile, len(s.profiles)),
		activities: append([]model.Activity(nil), s.activities...),
		summaries:  append([]model.Summary(nil), s.summaries...),
	}
	for k, v := range s.members {
		snap.members[k] = v
	}
	for k, v := range s.profiles {
		snap.profiles[k] = v
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.nextID = snap.nextID
		s.members = snap.members
		s.profiles = snap.profiles
		s.activities = snap.activities
		s.summaries = snap.summaries
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) GetMember(ctx context.Context, id uint) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) GetActiveProfile(ctx context.Context, id uint) (*model.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok || !p.IsActive {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) sortedProfiles(keep func(model.SocialProfile) bool) []model.SocialProfile {
	var out []model.SocialProfile
	for _, p := range s.profiles {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListActiveProfiles(ctx context.Context) ([]model.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListProfilesErr != nil {
		return nil, s.ListProfilesErr
	}
	return s.sortedProfiles(func(p model.SocialProfile) bool { return p.IsActive }), nil
}

func (s *Store) ListProfilesDueForCheck(ctx context.Context, cutoff time.Time) ([]model.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListProfilesErr != nil {
		return nil, s.ListProfilesErr
	}
	return s.sortedProfiles(func(p model.SocialProfile) bool {
		return p.IsActive && (p.LastChecked == nil || !p.LastChecked.After(cutoff))
	}), nil
}

func (s *Store) CountActiveProfiles(ctx context.Context, platform string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.profiles {
		if p.IsActive && (platform == "" || strings.EqualFold(p.Platform, platform)) {
			n++
		}
	}
	return n, nil
}

func (s *Store) TouchProfile(ctx context.Context, id uint, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("profile %d not found", id)
	}
	t := checkedAt.UTC()
	p.LastChecked = &t
	s.profiles[id] = p
	return nil
}

func (s *Store) ActivityExists(ctx context.Context, profileID uint, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists(profileID, externalID), nil
}

func (s *Store) exists(profileID uint, externalID string) bool {
	for _, a := range s.activities {
		if a.SocialProfileID == profileID && a.ExternalID == externalID {
			return true
		}
	}
	return false
}

func (s *Store) CreateActivity(ctx context.Context, activity *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateActivityErr != nil && s.created >= s.FailCreateAfterRows {
		return s.CreateActivityErr
	}
	if s.exists(activity.SocialProfileID, activity.ExternalID) {
		return fmt.Errorf("UNIQUE constraint failed: activities.social_profile_id, activities.external_id")
	}
	activity.ID = s.id()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}
	s.activities = append(s.activities, *activity)
	s.created++
	return nil
}

func (s *Store) CountActivitiesSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.activities {
		if !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func newestFirst(list []model.Activity) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func (s *Store) ListActivitiesInRange(ctx context.Context, q repository.ActivityQuery) ([]model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListActivitiesErr != nil {
		return nil, s.ListActivitiesErr
	}
	var out []model.Activity
	for _, a := range s.activities {
		if a.CreatedAt.Before(q.Start) || a.CreatedAt.After(q.End) {
			continue
		}
		if q.MemberID != nil && a.MemberID != *q.MemberID {
			continue
		}
		out = append(out, a)
	}
	newestFirst(out)
	return out, nil
}

func (s *Store) ListActivities(ctx context.Context, f repository.ActivityFilter) ([]model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Activity
	for _, a := range s.activities {
		if f.Platform != "" && !strings.EqualFold(a.Platform, f.Platform) {
			continue
		}
		if f.MemberID != nil && a.MemberID != *f.MemberID {
			continue
		}
		out = append(out, a)
	}
	newestFirst(out)
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) CreateSummary(ctx context.Context, summary *model.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateSummaryErr != nil {
		return s.CreateSummaryErr
	}
	summary.ID = s.id()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}
	s.summaries = append(s.summaries, *summary)
	return nil
}

func (s *Store) GetSummary(ctx context.Context, id uint) (*model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sm := range s.summaries {
		if sm.ID == id {
			return &sm, nil
		}
	}
	return nil, nil
}

func (s *Store) ListSummaries(ctx context.Context, f repository.SummaryFilter) ([]model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Summary
	for i := len(s.summaries) - 1; i >= 0; i-- {
		if f.Type == "" || s.summaries[i].SummaryType == f.Type {
			out = append(out, s.summaries[i])
		}
	}
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) MarkSummarySent(ctx context.Context, id uint, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.summaries {
		if s.summaries[i].ID == id {
			t := sentAt.UTC()
			s.summaries[i].IsSent = true
			s.summaries[i].SentAt = &t
			return nil
		}
	}
	return fmt.Errorf("summary %d not found", id)
}

func page[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
