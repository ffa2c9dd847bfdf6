// Package persist saves and loads the catalog through an objstore backend.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaym/shelf/catalog"
)

// Kind names a persistence strategy.
type Kind string

const (
	KindNone            Kind = "none"
	KindLocalFile       Kind = "local-file"
	KindShardedFile     Kind = "sharded-file"
	KindRemoteVersioned Kind = "remote-versioned"
	KindSQLite          Kind = "sqlite"
)

var kinds = []Kind{KindNone, KindLocalFile, KindShardedFile, KindRemoteVersioned, KindSQLite}

// ParseKind validates a configured backend name.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown storage backend %q", s)
}

// ErrBackupUnsupported is returned by Backup on strategies without backups.
var ErrBackupUnsupported = errors.New("backups are not supported by this storage backend")

// Error is a failed read or write against the backing store.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Adapter loads the whole catalog at startup and saves sections after
// each mutation.
type Adapter interface {
	Kind() Kind
	Load(ctx context.Context) (catalog.Snapshot, error)
	// Save writes the named sections of snap. With no sections, all are written.
	Save(ctx context.Context, snap catalog.Snapshot, sections ...catalog.Section) error
	Status(ctx context.Context) Status
	// Backup copies the current files aside and returns the created paths.
	Backup(ctx context.Context) ([]string, error)
	Close() error
}

// Status describes the adapter for the storage stats endpoint.
type Status struct {
	Kind      Kind           `json:"kind"`
	Backend   string         `json:"backend"`
	Objects   []ObjectStatus `json:"objects"`
	LastSave  *time.Time     `json:"lastSave,omitempty"`
	LastError string         `json:"lastError,omitempty"`
}

// ObjectStatus is what is known about one persisted object.
type ObjectStatus struct {
	Key     string     `json:"key"`
	Version string     `json:"version,omitempty"`
	Exists  bool       `json:"exists"`
	Size    int64      `json:"size,omitempty"`
	ModTime *time.Time `json:"modTime,omitempty"`
}
