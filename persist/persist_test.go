package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/objstore"
)

func sampleSnapshot() catalog.Snapshot {
	snap := catalog.Snapshot{
		Movies: []catalog.Movie{{
			Details: catalog.Details{ID: "tt0111161", Type: catalog.TypeMovie, Name: "The Shawshank Redemption", Genre: []string{"Drama"}, Year: 1994},
			URL:     "https://example.com/a.mp4",
		}},
		Series: []catalog.Series{{
			Details: catalog.Details{ID: "tt0903747", Type: catalog.TypeSeries, Name: "Breaking Bad"},
		}},
		Episodes: []catalog.Episode{{
			ID: "tt0903747:1:1", SeriesID: "tt0903747", Name: "Pilot", Season: 1, Episode: 1,
		}},
	}
	snap.Normalize()
	return snap
}

func TestSectionedLoadInitialisesMissingSections(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	a := NewSectioned(KindRemoteVersioned, store, "data/")

	snap, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Movies) != 0 || snap.Movies == nil {
		t.Errorf("Load() movies = %#v, want empty non-nil", snap.Movies)
	}
	for _, key := range []string{"data/movies.json", "data/series.json", "data/episodes.json"} {
		obj, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", key, err)
		}
		if string(obj.Data) != "[]" {
			t.Errorf("%s = %q, want []", key, obj.Data)
		}
	}
}

func TestSectionedRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	a := NewSectioned(KindNone, store, "")
	if _, err := a.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := sampleSnapshot()
	if err := a.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := NewSectioned(KindNone, store, "").Load(ctx)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestSectionedStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	first := NewSectioned(KindRemoteVersioned, store, "data/")
	second := NewSectioned(KindRemoteVersioned, store, "data/")
	if _, err := first.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := second.Load(ctx); err != nil {
		t.Fatal(err)
	}

	snap := sampleSnapshot()
	if err := first.Save(ctx, snap, catalog.SectionMovies); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	err := second.Save(ctx, snap, catalog.SectionMovies)
	if !errors.Is(err, objstore.ErrVersionMismatch) {
		t.Fatalf("second Save() error = %v, want ErrVersionMismatch", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.Op != "save" || perr.Key != "data/movies.json" {
		t.Errorf("second Save() error = %#v, want *Error for data/movies.json", err)
	}
	if st := second.Status(ctx); st.LastError == "" {
		t.Error("Status().LastError empty after failed save")
	}

	// Other sections still carry fresh tokens.
	if err := second.Save(ctx, snap, catalog.SectionSeries); err != nil {
		t.Errorf("Save(series) error = %v", err)
	}
}

func TestSectionedCorruptSection(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	if _, err := store.Put(ctx, "movies.json", []byte("{not json"), ""); err != nil {
		t.Fatal(err)
	}
	_, err := NewSectioned(KindNone, store, "").Load(ctx)
	var perr *Error
	if !errors.As(err, &perr) || perr.Op != "load" {
		t.Fatalf("Load() error = %v, want load *Error", err)
	}
}

func TestSectionedLoadLooseScalars(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	files := map[string]string{
		"data/movies.json":   `[{"id":"tt0111161","type":"movie","name":"The Shawshank Redemption","year":"1994","runtime":142,"imdbRating":9.3,"url":"https://example.com/a.mp4"}]`,
		"data/series.json":   `[{"id":"tt0903747","type":"series","name":"Breaking Bad","year":"","runtime":"47"}]`,
		"data/episodes.json": `[{"id":"tt0903747:1:1","seriesId":"tt0903747","name":"Pilot","season":1,"episode":1,"year":"2008","runtime":58}]`,
	}
	for key, data := range files {
		if _, err := store.Put(ctx, key, []byte(data), ""); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := NewSectioned(KindRemoteVersioned, store, "data/").Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Movies) != 1 || len(snap.Series) != 1 || len(snap.Episodes) != 1 {
		t.Fatalf("Load() = %+v, want one record per section", snap)
	}
	m := snap.Movies[0]
	if m.Year != 1994 || m.Runtime != "142" || m.IMDbRating != "9.3" {
		t.Errorf("movie year/runtime/rating = %v/%q/%q", m.Year, m.Runtime, m.IMDbRating)
	}
	if s := snap.Series[0]; s.Year != 0 || s.Runtime != "47" {
		t.Errorf("series year/runtime = %v/%q", s.Year, s.Runtime)
	}
	if ep := snap.Episodes[0]; ep.Year != 2008 || ep.Runtime != "58" {
		t.Errorf("episode year/runtime = %v/%q", ep.Year, ep.Runtime)
	}
}

func TestLocalFileWholeDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := Open(Config{Backend: "local-file", DataDir: dir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if a.Kind() != KindLocalFile {
		t.Errorf("Kind() = %q", a.Kind())
	}
	if _, err := a.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "database.json")); err != nil {
		t.Fatalf("database.json not created: %v", err)
	}

	want := sampleSnapshot()
	if err := a.Save(ctx, want, catalog.SectionMovies); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	b, _ := Open(Config{Backend: "local-file", DataDir: dir})
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reload mismatch (-want +got):\n%s", diff)
	}
	if _, err := a.Backup(ctx); !errors.Is(err, ErrBackupUnsupported) {
		t.Errorf("Backup() error = %v, want ErrBackupUnsupported", err)
	}
}

func TestShardedFileBackupsAndStatus(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := Open(Config{DataDir: dir, BackupKeep: 3})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if a.Kind() != KindShardedFile {
		t.Fatalf("Kind() = %q, want sharded-file", a.Kind())
	}
	if _, err := a.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := a.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	paths, err := a.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("Backup() wrote %d files, want 3: %v", len(paths), paths)
	}
	for _, p := range paths {
		if filepath.Dir(p) != filepath.Join(dir, "backups") {
			t.Errorf("backup %s outside backups dir", p)
		}
	}

	st := a.Status(ctx)
	if st.Backend != "localfs" || len(st.Objects) != 3 {
		t.Fatalf("Status() = %+v", st)
	}
	for _, obj := range st.Objects {
		if !obj.Exists || obj.Size == 0 || obj.ModTime == nil {
			t.Errorf("object status = %+v, want existing file with size and mtime", obj)
		}
	}
	if st.LastSave == nil {
		t.Error("Status().LastSave not set")
	}
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shelf.db")
	a, err := Open(Config{Backend: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := a.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := sampleSnapshot()
	if err := a.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b, err := Open(Config{Backend: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reload mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveKind(t *testing.T) {
	gh := objstore.GitHubConfig{Token: "t", Owner: "o", Repo: "r"}
	tests := []struct {
		name    string
		cfg     Config
		want    Kind
		wantErr bool
	}{
		{name: "default", cfg: Config{}, want: KindShardedFile},
		{name: "github configured", cfg: Config{GitHub: gh}, want: KindRemoteVersioned},
		{name: "explicit wins", cfg: Config{Backend: "none", GitHub: gh}, want: KindNone},
		{name: "sqlite", cfg: Config{Backend: "sqlite"}, want: KindSQLite},
		{name: "unknown", cfg: Config{Backend: "s3"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveKind()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveKind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenRemoteRequiresGitHub(t *testing.T) {
	if _, err := Open(Config{Backend: "remote-versioned"}); err == nil {
		t.Error("Open(remote-versioned) without GitHub config returned nil error")
	}
}
