package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultCloudflareAPI = "https://api.cloudflare.com"

// CloudflareConfig holds the zone and token used to manage page rules.
type CloudflareConfig struct {
	ZoneID   string `mapstructure:"zone_id"`
	APIToken string `mapstructure:"api_token"`
	// BaseURL overrides the API root, mostly for tests.
	BaseURL string `mapstructure:"base_url"`
}

func (c CloudflareConfig) Configured() bool {
	return c.ZoneID != "" && c.APIToken != ""
}

type Cloudflare struct {
	cfg    CloudflareConfig
	client *http.Client
}

func NewCloudflare(cfg CloudflareConfig, client *http.Client) *Cloudflare {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCloudflareAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Cloudflare{cfg: cfg, client: client}
}

type pageRuleTarget struct {
	Target     string `json:"target"`
	Constraint struct {
		Operator string `json:"operator"`
		Value    string `json:"value"`
	} `json:"constraint"`
}

type pageRuleAction struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

type pageRule struct {
	Targets  []pageRuleTarget `json:"targets"`
	Actions  []pageRuleAction `json:"actions"`
	Priority int              `json:"priority"`
	Status   string           `json:"status"`
}

type cloudflareResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		ID string `json:"id"`
	} `json:"result"`
}

// CreatePageRule makes every URL matching pattern cache everything at the
// edge for a day and in browsers for an hour. It returns the rule id.
func (c *Cloudflare) CreatePageRule(ctx context.Context, pattern string) (string, error) {
	target := pageRuleTarget{Target: "url"}
	target.Constraint.Operator = "matches"
	target.Constraint.Value = pattern
	rule := pageRule{
		Targets: []pageRuleTarget{target},
		Actions: []pageRuleAction{
			{ID: "cache_level", Value: "cache_everything"},
			{ID: "edge_cache_ttl", Value: 86400},
			{ID: "browser_cache_ttl", Value: 3600},
		},
		Priority: 1,
		Status:   "active",
	}
	body, err := json.Marshal(rule)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/client/v4/zones/%s/pagerules", c.cfg.BaseURL, url.PathEscape(c.cfg.ZoneID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudflare: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("cloudflare: reading response: %w", err)
	}

	var result cloudflareResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("cloudflare: status %d: decoding response: %w", resp.StatusCode, err)
	}
	if !result.Success {
		msg := "unknown error"
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return "", fmt.Errorf("cloudflare: creating page rule: %s", msg)
	}
	return result.Result.ID, nil
}

// EnsureVideoRule creates the cache rule for the rewriter's video paths.
// Failures are logged; the rewriter works without the rule, just with
// Cloudflare's default caching.
func EnsureVideoRule(ctx context.Context, cf *Cloudflare, r *Rewriter) {
	if cf == nil || !r.Enabled() {
		return
	}
	pattern := r.Domain() + "/video/*"
	id, err := cf.CreatePageRule(ctx, pattern)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("pattern", pattern).Msg("could not create cloudflare page rule")
		}
		return
	}
	log.Info().Str("pattern", pattern).Str("rule", id).Msg("cloudflare page rule created")
}
