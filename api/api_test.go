package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/cdn"
	"github.com/jaym/shelf/objstore"
	"github.com/jaym/shelf/persist"
)

// flakyStore is a memory store whose writes can be switched to fail.
type flakyStore struct {
	*objstore.Memory
	fail atomic.Bool
}

var errRemoteWrite = errors.New("remote write failed")

func (s *flakyStore) Put(ctx context.Context, key string, data []byte, version string) (string, error) {
	if s.fail.Load() {
		return "", errRemoteWrite
	}
	return s.Memory.Put(ctx, key, data, version)
}

type testEnv struct {
	srv     *httptest.Server
	store   *catalog.Store
	objects *flakyStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	objects := &flakyStore{Memory: objstore.NewMemory()}
	if opts.Store == nil {
		opts.Store = catalog.NewStore()
	}
	if opts.Persist == nil {
		opts.Persist = persist.NewSectioned(persist.KindNone, objects, "")
	}
	srv := httptest.NewServer(NewApiHandler(opts))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: opts.Store, objects: objects}
}

// do sends body as JSON (when non-nil) and decodes the reply into out
// (when non-nil). It returns the status code.
func (e *testEnv) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = bytes.NewBufferString(s)
		} else {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			rd = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) mustDo(t *testing.T, method, path string, body any) {
	t.Helper()
	var res map[string]any
	if code := e.do(t, method, path, body, &res); code != http.StatusOK {
		t.Fatalf("%s %s: status %d, body %v", method, path, code, res)
	}
}

var shawshank = map[string]any{
	"id":          "tt0111161",
	"name":        "The Shawshank Redemption",
	"genre":       "Drama, Crime",
	"year":        "1994",
	"director":    []string{"Frank Darabont"},
	"cast":        "Tim Robbins, Morgan Freeman",
	"runtime":     142,
	"imdbRating":  "9.3",
	"url":         "https://media.example.com/shawshank.mp4",
	"description": "Two imprisoned men bond over a number of years.",
}

var breakingBad = map[string]any{
	"id":   "tt0903747",
	"name": "Breaking Bad",
}

func episode(season, ep int, name string) map[string]any {
	return map[string]any{
		"seriesId": "tt0903747",
		"name":     name,
		"season":   season,
		"episode":  ep,
		"url":      "https://media.example.com/bb.mkv",
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Options{})

	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/add-movie", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t, Options{})

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodGet, "/health", nil, nil)

	resp, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("shelf_http_requests_total")) {
		t.Error("metrics output lacks shelf_http_requests_total")
	}
}

func TestStreamUsesRewriter(t *testing.T) {
	rw := cdn.NewRewriter("cdn.example.com")
	env := newTestEnv(t, Options{Rewriter: rw})
	env.mustDo(t, http.MethodPost, "/api/add-movie", shawshank)

	var res struct {
		Streams []Stream `json:"streams"`
	}
	env.do(t, http.MethodGet, "/stream/movie/tt0111161.json", nil, &res)
	if len(res.Streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(res.Streams))
	}
	want := rw.Rewrite("https://media.example.com/shawshank.mp4")
	if res.Streams[0].URL != want {
		t.Errorf("stream url = %q, want %q", res.Streams[0].URL, want)
	}
	if rw.Len() != 1 {
		t.Errorf("rewriter cached %d urls, want 1", rw.Len())
	}
}
