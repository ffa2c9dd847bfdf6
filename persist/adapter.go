package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/metrics"
	"github.com/jaym/shelf/objstore"
)

// tracker wraps an objstore.Store and remembers the version token of every
// object it has read or written, supplying it on the next write.
type tracker struct {
	kind  Kind
	store objstore.Store
	keys  []string

	// mu serialises loads and saves so two writes of the same object
	// never interleave within this process.
	mu       sync.Mutex
	versions map[string]string
	lastSave time.Time
	lastErr  error
}

func newTracker(kind Kind, store objstore.Store, keys []string) *tracker {
	return &tracker{kind: kind, store: store, keys: keys, versions: make(map[string]string)}
}

func (t *tracker) Kind() Kind { return t.kind }

// get reads key and records its version. ErrNotFound stays detectable
// through the returned *Error.
func (t *tracker) get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	obj, err := t.store.Get(ctx, key)
	metrics.ObservePersist(string(t.kind), "get", err, time.Since(start))
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			delete(t.versions, key)
		}
		return nil, &Error{Op: "load", Key: key, Err: err}
	}
	t.versions[key] = obj.Version
	return obj.Data, nil
}

func (t *tracker) put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	version, err := t.store.Put(ctx, key, data, t.versions[key])
	metrics.ObservePersist(string(t.kind), "put", err, time.Since(start))
	if err != nil {
		t.lastErr = err
		log.Error().Err(err).Str("backend", string(t.kind)).Str("key", key).Msg("failed to save")
		return &Error{Op: "save", Key: key, Err: err}
	}
	t.versions[key] = version
	t.lastSave = time.Now()
	t.lastErr = nil
	log.Debug().Str("backend", string(t.kind)).Str("key", key).Str("version", version).Msg("saved")
	return nil
}

func (t *tracker) Status(ctx context.Context) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{Kind: t.kind, Backend: t.store.Name(), Objects: make([]ObjectStatus, 0, len(t.keys))}
	if !t.lastSave.IsZero() {
		ls := t.lastSave
		st.LastSave = &ls
	}
	if t.lastErr != nil {
		st.LastError = t.lastErr.Error()
	}
	stater, _ := t.store.(objstore.Stater)
	for _, key := range t.keys {
		obj := ObjectStatus{Key: key, Version: t.versions[key]}
		obj.Exists = obj.Version != ""
		if stater != nil {
			info, err := stater.Stat(ctx, key)
			switch {
			case err == nil:
				obj.Exists = true
				obj.Size = info.Size
				if !info.ModTime.IsZero() {
					mt := info.ModTime
					obj.ModTime = &mt
				}
			case !errors.Is(err, objstore.ErrNotFound):
				log.Warn().Err(err).Str("key", key).Msg("failed to stat object")
			}
		}
		st.Objects = append(st.Objects, obj)
	}
	return st
}

func (t *tracker) Backup(ctx context.Context) ([]string, error) {
	b, ok := t.store.(objstore.Backupper)
	if !ok {
		return nil, ErrBackupUnsupported
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var paths []string
	for _, key := range t.keys {
		start := time.Now()
		p, err := b.Backup(ctx, key)
		metrics.ObservePersist(string(t.kind), "backup", err, time.Since(start))
		switch {
		case errors.Is(err, objstore.ErrBackupsDisabled):
			return nil, ErrBackupUnsupported
		case errors.Is(err, objstore.ErrNotFound):
			continue
		case err != nil:
			return paths, &Error{Op: "backup", Key: key, Err: err}
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (t *tracker) Close() error {
	if c, ok := t.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Sectioned keeps each catalog section in its own object.
type Sectioned struct {
	*tracker
	sectionKeys map[catalog.Section]string
}

// NewSectioned stores sections under prefix+"{section}.json".
func NewSectioned(kind Kind, store objstore.Store, prefix string) *Sectioned {
	sectionKeys := make(map[catalog.Section]string, len(catalog.Sections))
	keys := make([]string, 0, len(catalog.Sections))
	for _, sec := range catalog.Sections {
		key := prefix + string(sec) + ".json"
		sectionKeys[sec] = key
		keys = append(keys, key)
	}
	return &Sectioned{tracker: newTracker(kind, store, keys), sectionKeys: sectionKeys}
}

func (a *Sectioned) Load(ctx context.Context) (catalog.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snap catalog.Snapshot
	var missing []catalog.Section
	for _, sec := range catalog.Sections {
		key := a.sectionKeys[sec]
		data, err := a.get(ctx, key)
		if errors.Is(err, objstore.ErrNotFound) {
			log.Info().Str("key", key).Msg("section not found, initialising empty")
			missing = append(missing, sec)
			continue
		}
		if err != nil {
			return catalog.Snapshot{}, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if err := snap.UnmarshalSection(sec, data); err != nil {
			return catalog.Snapshot{}, &Error{Op: "load", Key: key, Err: err}
		}
	}
	snap.Normalize()

	for _, sec := range missing {
		if err := a.saveSection(ctx, snap, sec); err != nil {
			return catalog.Snapshot{}, err
		}
	}
	return snap, nil
}

func (a *Sectioned) Save(ctx context.Context, snap catalog.Snapshot, sections ...catalog.Section) error {
	if len(sections) == 0 {
		sections = catalog.Sections
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, sec := range sections {
		if err := a.saveSection(ctx, snap, sec); err != nil {
			return err
		}
	}
	return nil
}

func (a *Sectioned) saveSection(ctx context.Context, snap catalog.Snapshot, sec catalog.Section) error {
	key, ok := a.sectionKeys[sec]
	if !ok {
		return &Error{Op: "save", Key: string(sec), Err: errors.New("unknown section")}
	}
	data, err := snap.MarshalSection(sec)
	if err != nil {
		return &Error{Op: "save", Key: key, Err: err}
	}
	return a.put(ctx, key, indent(data))
}

// Whole keeps the entire catalog in a single object.
type Whole struct {
	*tracker
	key string
}

func NewWhole(kind Kind, store objstore.Store, key string) *Whole {
	return &Whole{tracker: newTracker(kind, store, []string{key}), key: key}
}

func (a *Whole) Load(ctx context.Context) (catalog.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snap catalog.Snapshot
	data, err := a.get(ctx, a.key)
	switch {
	case errors.Is(err, objstore.ErrNotFound):
		log.Info().Str("key", a.key).Msg("database not found, initialising empty")
		snap.Normalize()
		if err := a.saveAll(ctx, snap); err != nil {
			return catalog.Snapshot{}, err
		}
		return snap, nil
	case err != nil:
		return catalog.Snapshot{}, err
	}

	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &snap); err != nil {
			return catalog.Snapshot{}, &Error{Op: "load", Key: a.key, Err: err}
		}
	}
	snap.Normalize()
	return snap, nil
}

// Save always writes the whole catalog; sections are ignored.
func (a *Whole) Save(ctx context.Context, snap catalog.Snapshot, _ ...catalog.Section) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveAll(ctx, snap)
}

func (a *Whole) saveAll(ctx context.Context, snap catalog.Snapshot) error {
	snap.Normalize()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &Error{Op: "save", Key: a.key, Err: err}
	}
	return a.put(ctx, a.key, data)
}

func indent(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return data
	}
	return buf.Bytes()
}
