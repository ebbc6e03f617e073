package monitor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/gocolly/colly"
	"github.com/pkg/errors"

	"github.com/bugmaker2/Inspector/internal/config"
	"github.com/bugmaker2/Inspector/internal/model"
)

const (
	linkedinDomain = "linkedin.com"
	linkedinOrigin = "https://www.linkedin.com"

	postSelector    = "div[class*=post], div[class*=article], div[class*=update]"
	contentSelector = "p[class*=content], p[class*=text], p[class*=body], div[class*=content], div[class*=text], div[class*=body]"
	timeSelector    = "time[class*=time], time[class*=date], span[class*=time], span[class*=date]"
)

// LinkedInMonitor scrapes post cards from a public LinkedIn profile page.
// The markup is not a stable interface, so an empty result is normal.
type LinkedInMonitor struct {
	userAgent string
	maxPosts  int
	timeout   time.Duration
}

var _ PlatformMonitor = (*LinkedInMonitor)(nil)

func NewLinkedInMonitor(cfg config.LinkedInConfig) *LinkedInMonitor {
	m := &LinkedInMonitor{userAgent: cfg.UserAgent, maxPosts: cfg.MaxPosts, timeout: cfg.Timeout}
	if m.maxPosts <= 0 {
		m.maxPosts = 10
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}
	return m
}

func (m *LinkedInMonitor) PlatformName() string { return model.PlatformLinkedIn }

func (m *LinkedInMonitor) CanHandle(profile *model.SocialProfile) bool {
	return strings.EqualFold(profile.Platform, model.PlatformLinkedIn) && hostMatches(profile.ProfileURL, linkedinDomain)
}

func (m *LinkedInMonitor) FetchRawActivities(ctx context.Context, profile *model.SocialProfile) ([]RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector()
	if m.userAgent != "" {
		c.UserAgent = m.userAgent
	}
	c.SetRequestTimeout(m.timeout)

	var (
		raws     []RawEvent
		fetchErr error
	)
	c.OnHTML(postSelector, func(e *colly.HTMLElement) {
		if len(raws) >= m.maxPosts {
			return
		}
		if strings.TrimSpace(e.DOM.Find(contentSelector).First().Text()) == "" && e.DOM.Find("a[href]").Length() == 0 {
			return
		}
		raws = append(raws, RawEvent{Platform: model.PlatformLinkedIn, Data: e.DOM})
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(profile.ProfileURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", profile.ProfileURL, fetchErr)
	}
	return raws, nil
}

func (m *LinkedInMonitor) ParseActivity(raw RawEvent) (NormalizedActivity, error) {
	post, ok := raw.Data.(*goquery.Selection)
	if !ok || post == nil {
		return NormalizedActivity{}, errors.Errorf("unexpected LinkedIn post payload %T", raw.Data)
	}

	content := strings.TrimSpace(post.Find(contentSelector).First().Text())

	link, _ := post.Find("a[href]").First().Attr("href")
	link = strings.TrimSpace(link)
	if link != "" && !strings.HasPrefix(link, "http") {
		if !strings.HasPrefix(link, "/") {
			link = "/" + link
		}
		link = linkedinOrigin + link
	}

	normalized := NormalizedActivity{
		ActivityType: "post",
		Content:      content,
		URL:          link,
		ExternalID:   linkedinExternalID(content, link),
	}

	if t := post.Find(timeSelector).First(); t.Length() > 0 {
		stamp, ok := t.Attr("datetime")
		if !ok || strings.TrimSpace(stamp) == "" {
			stamp = t.Text()
		}
		if published, err := dateparse.ParseAny(strings.TrimSpace(stamp)); err == nil {
			published = published.UTC()
			normalized.PublishedAt = &published
		}
	}
	return normalized, nil
}

// linkedinExternalID hashes the visible post. Any change to the text or link
// produces a new id.
func linkedinExternalID(content, link string) string {
	sum := md5.Sum([]byte(content + link))
	return "linkedin_" + hex.EncodeToString(sum[:])
}
