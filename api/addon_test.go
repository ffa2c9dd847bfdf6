package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jaym/shelf/catalog"
)

func TestManifest(t *testing.T) {
	env := newTestEnv(t, Options{Manifest: ManifestConfig{Name: "My Shelf"}})

	var got Manifest
	if code := env.do(t, http.MethodGet, "/manifest.json", nil, &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := Manifest{
		ID:          "com.shelf.addon",
		Version:     "1.0.0",
		Name:        "My Shelf",
		Description: "Personal movie and series catalog",
		Types:       []string{"movie", "series"},
		Catalogs: []ManifestCatalog{
			{Type: "movie", ID: "my-movies", Name: "Recomendación"},
			{Type: "series", ID: "my-series", Name: "Recomendación"},
		},
		Resources:  []string{"catalog", "meta", "stream"},
		IDPrefixes: []string{"tt", "custom"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mustDo(t, http.MethodPost, "/api/add-movie", shawshank)
	env.mustDo(t, http.MethodPost, "/api/add-series", breakingBad)

	tests := []struct {
		path string
		want []string
	}{
		{"/catalog/movie/my-movies.json", []string{"tt0111161"}},
		{"/catalog/series/my-series.json", []string{"tt0903747"}},
		{"/catalog/movie/my-movies/skip=0.json", []string{"tt0111161"}},
		{"/catalog/movie/my-series.json", []string{}},
		{"/catalog/anime/whatever.json", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var res struct {
				Metas []MetaPreview `json:"metas"`
			}
			if code := env.do(t, http.MethodGet, tt.path, nil, &res); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if res.Metas == nil {
				t.Fatal("metas encoded as null")
			}
			ids := []string{}
			for _, m := range res.Metas {
				ids = append(ids, m.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddMovieThenMeta(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mustDo(t, http.MethodPost, "/api/add-movie", shawshank)

	var res struct {
		Meta catalog.Movie `json:"meta"`
	}
	if code := env.do(t, http.MethodGet, "/meta/movie/tt0111161.json", nil, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	got := res.Meta
	if got.DateAdded.IsZero() {
		t.Error("dateAdded not set")
	}
	got.DateAdded = time.Time{}
	want := catalog.Movie{
		Details: catalog.Details{
			ID:          "tt0111161",
			Type:        "movie",
			Name:        "The Shawshank Redemption",
			Genre:       []string{"Drama", "Crime"},
			Year:        1994,
			Director:    []string{"Frank Darabont"},
			Cast:        []string{"Tim Robbins", "Morgan Freeman"},
			Description: "Two imprisoned men bond over a number of years.",
			Runtime:     "142",
			IMDbRating:  "9.3",
		},
		URL: "https://media.example.com/shawshank.mp4",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestMetaNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/meta/movie/tt404.json", "/meta/series/tt404.json", "/meta/other/x.json"} {
		var res errorResponse
		if code := env.do(t, http.MethodGet, path, nil, &res); code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, code)
		}
		if res.Error != "Content not found" {
			t.Errorf("%s: error = %q", path, res.Error)
		}
	}
}

func TestSeriesMetaVideosOrdered(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mustDo(t, http.MethodPost, "/api/add-series", map[string]any{
		"id":     "tt0903747",
		"name":   "Breaking Bad",
		"poster": "https://img.example.com/bb.jpg",
	})
	late := episode(2, 1, "Seven Thirty-Seven")
	late["year"] = 2009
	env.mustDo(t, http.MethodPost, "/api/add-episode", late)
	env.mustDo(t, http.MethodPost, "/api/add-episode", episode(1, 2, "Cat's in the Bag..."))
	env.mustDo(t, http.MethodPost, "/api/add-episode", episode(1, 1, "Pilot"))

	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	var res struct {
		Meta SeriesMeta `json:"meta"`
	}
	// Episodes without a year are released "now".
	handler := newApiHandler(Options{Store: env.store})
	handler.now = func() time.Time { return now }
	meta := handler.seriesMeta(mustSeries(t, env.store, "tt0903747"))

	if code := env.do(t, http.MethodGet, "/meta/series/tt0903747.json", nil, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(res.Meta.Videos) != 3 {
		t.Fatalf("got %d videos, want 3", len(res.Meta.Videos))
	}

	want := []Video{
		{ID: "tt0903747:1:1", Title: "S01E01 - Pilot", Season: 1, Episode: 1, Thumbnail: "https://img.example.com/bb.jpg", Released: "2024-05-06T07:08:09.000Z"},
		{ID: "tt0903747:1:2", Title: "S01E02 - Cat's in the Bag...", Season: 1, Episode: 2, Thumbnail: "https://img.example.com/bb.jpg", Released: "2024-05-06T07:08:09.000Z"},
		{ID: "tt0903747:2:1", Title: "S02E01 - Seven Thirty-Seven", Season: 2, Episode: 1, Thumbnail: "https://img.example.com/bb.jpg", Released: "2009-01-01T00:00:00.000Z"},
	}
	if diff := cmp.Diff(want, meta.Videos); diff != "" {
		t.Errorf("videos mismatch (-want +got):\n%s", diff)
	}
	for i, v := range res.Meta.Videos {
		if v.ID != want[i].ID {
			t.Errorf("video %d over HTTP = %s, want %s", i, v.ID, want[i].ID)
		}
	}
	if res.Meta.Name != "Breaking Bad" {
		t.Errorf("meta name = %q", res.Meta.Name)
	}
}

func mustSeries(t *testing.T, s *catalog.Store, id string) catalog.Series {
	t.Helper()
	sr, ok := s.FindSeries(id)
	if !ok {
		t.Fatalf("series %s not found", id)
	}
	return sr
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mustDo(t, http.MethodPost, "/api/add-series", breakingBad)
	ep := episode(1, 1, "Pilot")
	ep["quality"] = "4K"
	ep["language"] = "English"
	env.mustDo(t, http.MethodPost, "/api/add-episode", ep)
	env.mustDo(t, http.MethodPost, "/api/add-movie", map[string]any{
		"id":   "custom-1",
		"name": "Home Video",
		"url":  "https://media.example.com/home.mp4",
	})

	tests := []struct {
		path string
		want []Stream
	}{
		{
			path: "/stream/movie/custom-1.json",
			want: []Stream{{URL: "https://media.example.com/home.mp4", Title: "HD - Español", Quality: "HD"}},
		},
		{
			path: "/stream/series/tt0903747:1:1.json",
			want: []Stream{{URL: "https://media.example.com/bb.mkv", Title: "4K - English", Quality: "4K"}},
		},
		{path: "/stream/series/tt0903747:1:9.json", want: []Stream{}},
		{path: "/stream/series/tt0903747.json", want: []Stream{}},
		{path: "/stream/series/tt0903747:one:two.json", want: []Stream{}},
		{path: "/stream/movie/tt404.json", want: []Stream{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var res struct {
				Streams []Stream `json:"streams"`
			}
			if code := env.do(t, http.MethodGet, tt.path, nil, &res); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if res.Streams == nil {
				t.Fatal("streams encoded as null")
			}
			if diff := cmp.Diff(tt.want, res.Streams); diff != "" {
				t.Errorf("streams mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
