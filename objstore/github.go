package objstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubConfig points a GitHub store at one branch of one repository.
type GitHubConfig struct {
	Token  string `mapstructure:"token"`
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	// BaseURL overrides the API root, mostly for tests.
	BaseURL string `mapstructure:"base_url"`
}

// Configured reports whether enough is set to talk to the API.
func (c GitHubConfig) Configured() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != ""
}

// GitHub stores objects as files through the GitHub Contents API. The file
// blob sha is the version token; the API rejects writes with a stale sha.
type GitHub struct {
	cfg    GitHubConfig
	client *http.Client
}

// APIError is a non-2xx answer from a REST API. Err, when set, classifies
// it as ErrNotFound or ErrVersionMismatch.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error: %d - %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func NewGitHub(cfg GitHubConfig, client *http.Client) *GitHub {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GitHub{cfg: cfg, client: client}
}

func (g *GitHub) Name() string { return "github" }

type githubContent struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type githubPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type githubPutResponse struct {
	Content githubContent `json:"content"`
}

func (g *GitHub) contentsURL(key string) string {
	segments := strings.Split(strings.Trim(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.Owner), url.PathEscape(g.cfg.Repo), strings.Join(segments, "/"))
}

func (g *GitHub) Get(ctx context.Context, key string) (Object, error) {
	u := g.contentsURL(key) + "?ref=" + url.QueryEscape(g.cfg.Branch)
	var content githubContent
	if err := g.do(ctx, http.MethodGet, u, nil, &content); err != nil {
		return Object{}, err
	}
	if content.Encoding != "base64" {
		return Object{}, fmt.Errorf("github: unsupported content encoding %q for %s", content.Encoding, key)
	}
	// The API wraps base64 payloads at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return Object{}, fmt.Errorf("github: decoding %s: %w", key, err)
	}
	return Object{Data: data, Version: content.SHA}, nil
}

func (g *GitHub) Put(ctx context.Context, key string, data []byte, version string) (string, error) {
	body := githubPutRequest{
		Message: "Update " + key,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  g.cfg.Branch,
		SHA:     version,
	}
	var resp githubPutResponse
	if err := g.do(ctx, http.MethodPut, g.contentsURL(key), body, &resp); err != nil {
		return "", err
	}
	if resp.Content.SHA == "" {
		return "", fmt.Errorf("github: no sha in response for %s", key)
	}
	return resp.Content.SHA, nil
}

func (g *GitHub) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("User-Agent", "shelf-addon")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("github %s: reading response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newGitHubError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("github %s: decoding response: %w", method, err)
	}
	return nil
}

func newGitHubError(status int, raw []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := string(raw)
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	apiErr := &APIError{StatusCode: status, Message: msg}
	switch {
	case status == http.StatusNotFound:
		apiErr.Err = ErrNotFound
	case status == http.StatusConflict:
		apiErr.Err = ErrVersionMismatch
	case status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "sha"):
		apiErr.Err = ErrVersionMismatch
	}
	return apiErr
}
