package statusapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"hpcdash/config"
	"hpcdash/internal/pkg/model"
)

// Client talks to the upstream status backend.
type Client struct {
	api    *resty.Client
	cfg    config.Upstream
	logger *slog.Logger
}

// New creates a Client from config.Upstream. The base URL is the explicit
// BaseURL when set, otherwise the directory of PageURL.
func New(cfg config.Upstream, logger *slog.Logger) (*Client, error) {
	base, err := ResolveBaseURL(cfg.BaseURL, cfg.PageURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	api := resty.New().
		SetBaseURL(base).
		SetTimeout(config.ParseDuration(cfg.Timeout, 20*time.Second)).
		SetHeader("Accept", "application/json")
	if cfg.InsecureSkipVerify {
		api.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}
	logger.Debug("upstream client", "base_url", base)
	return &Client{api: api, cfg: cfg, logger: logger}, nil
}

// ResolveBaseURL returns override when non-empty, otherwise the directory
// part of pageURL. The result always ends with "/".
func ResolveBaseURL(override, pageURL string) (string, error) {
	if s := strings.TrimSpace(override); s != "" {
		if _, err := url.Parse(s); err != nil {
			return "", fmt.Errorf("invalid upstream base url: %w", err)
		}
		return withSlash(s), nil
	}
	if strings.TrimSpace(pageURL) == "" {
		return "", errors.New("upstream base url or page url is required")
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid upstream page url: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if i := strings.LastIndex(u.Path, "/"); i >= 0 {
		u.Path = u.Path[:i+1]
	} else {
		u.Path = "/"
	}
	return u.String(), nil
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// BaseURL returns the resolved upstream base.
func (c *Client) BaseURL() string { return c.api.BaseURL }

// get issues a cache-busted GET and decodes a 2xx body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Cache-Control", "no-cache").
		SetQueryParam("_", uuid.NewString()).
		Get(strings.TrimLeft(path, "/"))
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", path, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, model.ErrNotFound)
	case !resp.IsSuccess():
		return fmt.Errorf("%s: unexpected status code: %d, response: %s", path, resp.StatusCode(), truncate(resp.String(), 200))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}

// FetchStatus loads the live status snapshot.
func (c *Client) FetchStatus(ctx context.Context) (model.StatusSnapshot, error) {
	var snap model.StatusSnapshot
	err := c.get(ctx, c.cfg.StatusPath, &snap)
	return snap, err
}

// FetchFallbackStatus loads the static status snapshot.
func (c *Client) FetchFallbackStatus(ctx context.Context) (model.StatusSnapshot, error) {
	var snap model.StatusSnapshot
	err := c.get(ctx, c.cfg.FallbackStatusPath, &snap)
	return snap, err
}

// FetchClusterUsage loads the cluster usage snapshot.
func (c *Client) FetchClusterUsage(ctx context.Context) (model.Clusters, error) {
	var cs model.Clusters
	if err := c.get(ctx, c.cfg.ClusterUsagePath, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// FetchSystemMarkdown loads the briefing for slug. A missing briefing is
// reported as model.ErrNotFound.
func (c *Client) FetchSystemMarkdown(ctx context.Context, slug string) (string, error) {
	var b model.Briefing
	path := strings.TrimRight(c.cfg.MarkdownPath, "/") + "/" + url.PathEscape(slug)
	if err := c.get(ctx, path, &b); err != nil {
		return "", err
	}
	return b.Content, nil
}

// TriggerRefresh asks the backend to scrape again.
func (c *Client) TriggerRefresh(ctx context.Context) (model.RefreshResult, error) {
	var res model.RefreshResult
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Cache-Control", "no-cache").
		Post(strings.TrimLeft(c.cfg.RefreshPath, "/"))
	if err != nil {
		return res, fmt.Errorf("failed to refresh: %w", err)
	}
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &res); err != nil {
			c.logger.Debug("refresh response is not json", "body", truncate(resp.String(), 200))
		}
	}
	if !resp.IsSuccess() {
		detail := res.Detail
		if detail == "" {
			detail = truncate(resp.String(), 200)
		}
		return res, fmt.Errorf("refresh: unexpected status code: %d, response: %s", resp.StatusCode(), detail)
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package-level default client for convenience wiring.
var defaultClient *Client

// SetDefault sets the package-level default upstream client.
func SetDefault(c *Client) { defaultClient = c }

// Default returns the package-level default upstream client.
func Default() *Client { return defaultClient }
