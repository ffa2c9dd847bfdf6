package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultAPI = "https://api.themoviedb.org/3"

// Finder resolves external ids to TMDB ids.
type Finder interface {
	Find(ctx context.Context, imdbID, language string) (FindResult, error)
}

type FindHit struct {
	ID int `json:"id"`
}

// FindResult is the body of GET /find/{external_id}.
type FindResult struct {
	MovieResults []FindHit `json:"movie_results"`
	TVResults    []FindHit `json:"tv_results"`
}

// HTTPFinder calls the find endpoint directly.
type HTTPFinder struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewHTTPFinder(apiKey, baseURL string, client *http.Client) *HTTPFinder {
	if baseURL == "" {
		baseURL = defaultAPI
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFinder{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (f *HTTPFinder) Find(ctx context.Context, imdbID, language string) (FindResult, error) {
	q := url.Values{}
	q.Set("api_key", f.apiKey)
	q.Set("external_source", "imdb_id")
	if language != "" {
		q.Set("language", language)
	}
	u := fmt.Sprintf("%s/find/%s?%s", f.baseURL, url.PathEscape(imdbID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return FindResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return FindResult{}, &UpstreamError{Op: "find", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return FindResult{}, &UpstreamError{Op: "find", Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}
	var out FindResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return FindResult{}, &UpstreamError{Op: "find", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return out, nil
}
