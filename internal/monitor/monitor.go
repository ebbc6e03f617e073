package monitor

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository"
)

// RawEvent is an unparsed item returned by a platform fetch.
type RawEvent struct {
	Platform string
	Data     interface{}
}

// NormalizedActivity is the platform independent shape of a RawEvent.
type NormalizedActivity struct {
	ActivityType string
	Title        string
	Content      string
	URL          string
	ExternalID   string
	PublishedAt  *time.Time
}

// PlatformMonitor fetches and normalizes activity for one platform.
type PlatformMonitor interface {
	// PlatformName is the lower case tag stored in SocialProfile.Platform.
	PlatformName() string
	CanHandle(profile *model.SocialProfile) bool
	FetchRawActivities(ctx context.Context, profile *model.SocialProfile) ([]RawEvent, error)
	ParseActivity(raw RawEvent) (NormalizedActivity, error)
}

// ProfileMonitor adds the shared fetch, dedup and persist pass to a
// PlatformMonitor.
type ProfileMonitor struct {
	PlatformMonitor

	store   repository.Store
	sink    notify.Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewProfileMonitor(m PlatformMonitor, store repository.Store, sink notify.Sink, mtr *metrics.Metrics) *ProfileMonitor {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &ProfileMonitor{
		PlatformMonitor: m,
		store:           store,
		sink:            sink,
		metrics:         metrics.OrDiscard(mtr),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// MonitorProfile stores the activities of profile that are not yet known and
// advances its last_checked, all in one transaction. Fetch failures are logged
// and treated as an empty batch. Parse or persist failures roll the batch back
// and are returned.
func (p *ProfileMonitor) MonitorProfile(ctx context.Context, profile *model.SocialProfile) ([]model.Activity, error) {
	if !p.CanHandle(profile) {
		return nil, nil
	}

	platform := p.PlatformName()
	log := logrus.WithFields(logrus.Fields{
		"platform":   platform,
		"profile_id": profile.ID,
		"member_id":  profile.MemberID,
	})
	p.metrics.ProfilesChecked.WithLabelValues(platform).Inc()

	raws, err := p.FetchRawActivities(ctx, profile)
	if err != nil {
		log.Warnf("Fetch failed, treating as empty batch: %v", err)
		p.metrics.FetchFailures.WithLabelValues(platform).Inc()
		p.sink.Notify(ctx, notify.MonitoringErrorEvent(platform, profile.ID, err))
		raws = nil
	}

	checkedAt := p.now()
	var created []model.Activity
	err = p.store.Transaction(ctx, func(tx repository.Store) error {
		created = created[:0]
		for i, raw := range raws {
			normalized, err := p.ParseActivity(raw)
			if err != nil {
				return errors.Wrapf(err, "failed to parse event %d", i)
			}

			exists, err := tx.ActivityExists(ctx, profile.ID, normalized.ExternalID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			activity := model.Activity{
				MemberID:        profile.MemberID,
				SocialProfileID: profile.ID,
				Platform:        platform,
				ActivityType:    normalized.ActivityType,
				Title:           normalized.Title,
				Content:         normalized.Content,
				URL:             normalized.URL,
				ExternalID:      normalized.ExternalID,
				PublishedAt:     normalized.PublishedAt,
			}
			if err := tx.CreateActivity(ctx, &activity); err != nil {
				return err
			}
			created = append(created, activity)
		}
		return tx.TouchProfile(ctx, profile.ID, checkedAt)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error monitoring %s profile %d", platform, profile.ID)
	}

	profile.LastChecked = &checkedAt
	if len(created) > 0 {
		log.Infof("Stored %d new activities", len(created))
		p.metrics.NewActivities.WithLabelValues(platform).Add(float64(len(created)))
		p.sink.Notify(ctx, notify.NewActivityEvent(platform, profile, created))
	} else {
		log.Debug("No new activities")
	}
	return created, nil
}

func parseProfileURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	return url.Parse(rawURL)
}

// hostMatches reports whether rawURL points at domain or one of its subdomains.
func hostMatches(rawURL, domain string) bool {
	u, err := parseProfileURL(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// firstPathSegment returns the first non-empty path element of rawURL.
func firstPathSegment(rawURL string) string {
	u, err := parseProfileURL(rawURL)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			return part
		}
	}
	return ""
}
