// Package objstore provides small versioned blob stores used to persist the
// catalog. Every read returns the data together with an opaque version
// token; writes take the last token seen so that stores which support it can
// reject stale updates.
package objstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the key does not exist.
	ErrNotFound = errors.New("objstore: object not found")
	// ErrVersionMismatch is returned when a write carries a stale version
	// token, or no token for an object that already exists.
	ErrVersionMismatch = errors.New("objstore: version mismatch")
	// ErrBackupsDisabled is returned by Backup on a store without a backup dir.
	ErrBackupsDisabled = errors.New("objstore: backups are not enabled")
)

// Object is a stored value and the version token it was read at.
type Object struct {
	Data    []byte
	Version string
}

type ObjectReader interface {
	Get(ctx context.Context, key string) (Object, error)
}

type ObjectWriter interface {
	// Put stores data under key. An empty version creates the object.
	// The returned token must be passed to the next Put for the same key.
	Put(ctx context.Context, key string, data []byte, version string) (string, error)
}

// Store is a readable and writable object store.
type Store interface {
	ObjectReader
	ObjectWriter
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Info describes a stored object.
type Info struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Stater is implemented by stores that can report object metadata.
type Stater interface {
	Stat(ctx context.Context, key string) (Info, error)
}

// Backupper is implemented by stores that can copy an object aside.
type Backupper interface {
	// Backup copies the current value of key and returns where it went.
	Backup(ctx context.Context, key string) (string, error)
}
