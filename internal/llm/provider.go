// Package llm talks to chat-completion endpoints.
package llm

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/config"
)

const dashScopeHost = "dashscope.aliyuncs.com"

var (
	// ErrEmptyCompletion is returned when the endpoint answered without content.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrTruncatedStream is returned when a stream closes before the
	// endpoint signalled completion.
	ErrTruncatedStream = errors.New("stream ended before completion")
)

// Request is a single system + user turn.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Provider is a chat-completion backend. CompleteStream calls onChunk for each
// non-empty delta and returns the concatenated text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	CompleteStream(ctx context.Context, req Request, onChunk func(string)) (string, error)
}

// NewProvider picks the backend for cfg. It returns nil when no API key is
// configured.
func NewProvider(cfg config.OpenAIConfig) Provider {
	if cfg.APIKey == "" {
		logrus.Warn("OpenAI API key not configured, summaries are disabled")
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	if isDashScope(cfg.BaseURL) {
		logrus.Infof("Using DashScope chat endpoint with model %s", cfg.Model)
		return NewDashScopeProvider(cfg)
	}
	logrus.Infof("Using OpenAI compatible endpoint %s with model %s", cfg.BaseURL, cfg.Model)
	return NewOpenAIProvider(cfg)
}

func isDashScope(baseURL string) bool {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == dashScopeHost || strings.HasSuffix(host, "."+dashScopeHost)
}
