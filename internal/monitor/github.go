package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/bugmaker2/Inspector/internal/config"
	"github.com/bugmaker2/Inspector/internal/model"
)

const githubDomain = "github.com"

// GitHubMonitor reads the public events feed of a GitHub user.
type GitHubMonitor struct {
	client    *github.Client
	maxEvents int
}

var _ PlatformMonitor = (*GitHubMonitor)(nil)

// NewGitHubMonitor builds a monitor that authenticates when cfg.Token is set.
func NewGitHubMonitor(cfg config.GitHubConfig) (*GitHubMonitor, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
		httpClient.Timeout = timeout
	}

	client := github.NewClient(httpClient)
	if cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API base URL %q: %w", cfg.APIBaseURL, err)
		}
		client.BaseURL = u
	}

	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 20
	}
	return &GitHubMonitor{client: client, maxEvents: maxEvents}, nil
}

func (m *GitHubMonitor) PlatformName() string { return model.PlatformGitHub }

func (m *GitHubMonitor) CanHandle(profile *model.SocialProfile) bool {
	return strings.EqualFold(profile.Platform, model.PlatformGitHub) && hostMatches(profile.ProfileURL, githubDomain)
}

func (m *GitHubMonitor) username(profile *model.SocialProfile) string {
	if name := firstPathSegment(profile.ProfileURL); name != "" {
		return name
	}
	return profile.Username
}

func (m *GitHubMonitor) FetchRawActivities(ctx context.Context, profile *model.SocialProfile) ([]RawEvent, error) {
	user := m.username(profile)
	if user == "" {
		return nil, fmt.Errorf("cannot extract GitHub username from %q", profile.ProfileURL)
	}

	events, _, err := m.client.Activity.ListEventsPerformedByUser(ctx, user, false, &github.ListOptions{PerPage: m.maxEvents})
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", user, err)
	}
	if len(events) > m.maxEvents {
		events = events[:m.maxEvents]
	}

	raws := make([]RawEvent, 0, len(events))
	for _, e := range events {
		raws = append(raws, RawEvent{Platform: model.PlatformGitHub, Data: e})
	}
	return raws, nil
}

func (m *GitHubMonitor) ParseActivity(raw RawEvent) (NormalizedActivity, error) {
	event, ok := raw.Data.(*github.Event)
	if !ok || event == nil {
		return NormalizedActivity{}, errors.Errorf("unexpected GitHub event payload %T", raw.Data)
	}
	if event.GetID() == "" {
		return NormalizedActivity{}, errors.New("GitHub event without id")
	}

	activityType, content, title, err := classifyEvent(event)
	if err != nil {
		return NormalizedActivity{}, errors.Wrapf(err, "event %s", event.GetID())
	}

	normalized := NormalizedActivity{
		ActivityType: activityType,
		Title:        title,
		Content:      content,
		ExternalID:   "github_" + event.GetID(),
	}
	if repo := event.GetRepo().GetName(); repo != "" {
		normalized.URL = "https://github.com/" + repo
	}
	if event.CreatedAt != nil {
		published := event.CreatedAt.UTC()
		normalized.PublishedAt = &published
	}
	return normalized, nil
}

func classifyEvent(event *github.Event) (activityType, content, title string, err error) {
	eventType := event.GetType()
	repo := event.GetRepo().GetName()

	switch eventType {
	case "PushEvent", "CreateEvent", "PullRequestEvent", "IssuesEvent", "ForkEvent":
		if event.RawPayload == nil {
			return "", "", "", errors.Errorf("%s without payload", eventType)
		}
	default:
		return strings.ToLower(eventType),
			fmt.Sprintf("GitHub activity: %s", eventType),
			fmt.Sprintf("%s in %s", eventType, repo),
			nil
	}

	payload, err := event.ParsePayload()
	if err != nil {
		return "", "", "", errors.Wrapf(err, "malformed %s payload", eventType)
	}

	switch p := payload.(type) {
	case *github.PushEvent:
		messages := make([]string, 0, 3)
		for i, c := range p.Commits {
			if i == 3 {
				break
			}
			messages = append(messages, c.GetMessage())
		}
		return "push",
			fmt.Sprintf("Pushed %d commits: %s", len(p.Commits), strings.Join(messages, "; ")),
			fmt.Sprintf("Pushed %d commits to %s", len(p.Commits), repo),
			nil
	case *github.CreateEvent:
		return "create",
			fmt.Sprintf("Created %s: %s", p.GetRefType(), p.GetRef()),
			fmt.Sprintf("Created %s '%s' in %s", p.GetRefType(), p.GetRef(), repo),
			nil
	case *github.PullRequestEvent:
		action := capitalize(p.GetAction())
		return "pull_request",
			fmt.Sprintf("%s pull request: %s", action, p.GetPullRequest().GetTitle()),
			fmt.Sprintf("%s PR #%d in %s", action, p.GetPullRequest().GetNumber(), repo),
			nil
	case *github.IssuesEvent:
		action := capitalize(p.GetAction())
		return "issue",
			fmt.Sprintf("%s issue: %s", action, p.GetIssue().GetTitle()),
			fmt.Sprintf("%s issue #%d in %s", action, p.GetIssue().GetNumber(), repo),
			nil
	case *github.ForkEvent:
		fullName := p.GetForkee().GetFullName()
		return "fork",
			fmt.Sprintf("Forked repository: %s", fullName),
			fmt.Sprintf("Forked %s to %s", repo, fullName),
			nil
	}
	return "", "", "", errors.Errorf("unexpected payload type %T for %s", payload, eventType)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
