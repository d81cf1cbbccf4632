// Package azdo is a small Azure DevOps REST client covering the work item,
// repository, pipeline and team endpoints the agent tools need.
package azdo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rea/internal/httpx"
	"rea/internal/ratelimit"
)

const apiVersion = "7.0"

// Config configures a Client.
type Config struct {
	OrganizationURL     string
	PersonalAccessToken string
	Project             string
	Timeout             time.Duration
	Limiter             *ratelimit.Limiter // shared by every run; nil disables throttling
	HTTPClient          *http.Client
	Logger              *slog.Logger
}

// Client is safe for concurrent use. All calls share one connection pool and
// one token bucket, so concurrent runs are throttled together.
type Client struct {
	baseURL string
	project string
	auth    string
	limiter *ratelimit.Limiter
	http    *http.Client
	logger  *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.OrganizationURL == "" {
		return nil, fmt.Errorf("azdo: organization URL is required")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("azdo: project is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpx.SharedClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.OrganizationURL, "/"),
		project: cfg.Project,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+cfg.PersonalAccessToken)),
		limiter: cfg.Limiter,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}, nil
}

// Project returns the configured project name.
func (c *Client) Project() string { return c.project }

// projectURL builds {org}/{project}/_apis/{path}.
func (c *Client) projectURL(path string, query url.Values) string {
	return c.buildURL("/"+url.PathEscape(c.project)+"/_apis/"+path, query)
}

// teamURL builds {org}/{project}/{team}/_apis/{path}.
func (c *Client) teamURL(team, path string, query url.Values) string {
	return c.buildURL("/"+url.PathEscape(c.project)+"/"+url.PathEscape(team)+"/_apis/"+path, query)
}

// orgURL builds {org}/_apis/{path}.
func (c *Client) orgURL(path string, query url.Values) string {
	return c.buildURL("/_apis/"+path, query)
}

func (c *Client) buildURL(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("api-version") == "" {
		query.Set("api-version", apiVersion)
	}
	return c.baseURL + path + "?" + query.Encode()
}

// do sends one request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
	}
	if contentType == "" {
		contentType = "application/json"
	}

	start := time.Now()
	resp, err := httpx.Do(ctx, c.http, func() (*http.Request, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.auth)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}
		return req, nil
	}, c.logger)
	if err != nil {
		return fmt.Errorf("azdo %s: %w", method, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("azdo request", "method", method, "status", resp.StatusCode, "duration", time.Since(start))

	if err := httpx.CheckStatus(resp); err != nil {
		return fmt.Errorf("azdo %s: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("azdo decode: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, "", nil, out)
}

// listResponse is the {count, value} envelope of collection endpoints.
type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// orgURLNoVersion is the resource URL form used inside link relations.
func (c *Client) orgURLNoVersion(path string) string {
	return c.baseURL + "/_apis/" + path
}
