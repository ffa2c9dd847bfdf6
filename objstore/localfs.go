package objstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	backupTimeFormat = "20060102T150405.000000000Z"
	snapshotLabel    = "snapshot"
)

// LocalFS stores objects as files below a base directory. Writes replace the
// target atomically. Version tokens are content digests and are reported
// but not enforced: concurrent writers to the same key may lose updates.
type LocalFS struct {
	basePath    string
	backupDir   string
	keepBackups int
	now         func() time.Time
}

type LocalFSOption func(*LocalFS)

// WithBackups copies the previous version of an object into dir before
// every overwrite, keeping the newest keep copies per key (0 keeps all).
// Snapshots taken through Backup are kept apart under the same limit.
func WithBackups(dir string, keep int) LocalFSOption {
	return func(l *LocalFS) {
		l.backupDir = dir
		l.keepBackups = keep
	}
}

func NewLocalFS(basePath string, opts ...LocalFSOption) *LocalFS {
	l := &LocalFS{basePath: basePath, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalFS) Name() string { return "localfs" }

func (l *LocalFS) path(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func (l *LocalFS) Get(_ context.Context, key string) (Object, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, err
	}
	return Object{Data: data, Version: digest(data)}, nil
}

func (l *LocalFS) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if l.backupDir != "" {
		if _, err := l.copyAside(key, ""); err != nil && !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("backing up %s: %w", key, err)
		}
	}
	if err := writeFileAtomic(l.path(key), data); err != nil {
		return "", err
	}
	return digest(data), nil
}

func (l *LocalFS) Stat(_ context.Context, key string) (Info, error) {
	fi, err := os.Stat(l.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}
	return Info{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Backup snapshots the current file for key into the backup directory as
// {name}.snapshot.{timestamp}{ext}. Snapshots are pruned separately from the
// copies taken before writes. It returns ErrNotFound when there is nothing to copy.
func (l *LocalFS) Backup(_ context.Context, key string) (string, error) {
	if l.backupDir == "" {
		return "", ErrBackupsDisabled
	}
	return l.copyAside(key, snapshotLabel)
}

// copyAside copies key into the backup directory under the stem for label
// and prunes that stem.
func (l *LocalFS) copyAside(key, label string) (string, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}

	dir, stem, ext := l.backupParts(key, label)
	name := fmt.Sprintf("%s.%s%s", stem, l.now().UTC().Format(backupTimeFormat), ext)
	dst := filepath.Join(dir, name)
	if err := writeFileAtomic(dst, data); err != nil {
		return "", err
	}
	log.Debug().Str("key", key).Str("backup", dst).Msg("backup written")

	if l.keepBackups > 0 {
		if err := l.prune(dir, stem, ext); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to prune backups")
		}
	}
	return dst, nil
}

// Backups lists the copies taken before writes of key, oldest first.
func (l *LocalFS) Backups(key string) ([]string, error) {
	return listBackups(l.backupParts(key, ""))
}

// Snapshots lists the copies of key taken through Backup, oldest first.
func (l *LocalFS) Snapshots(key string) ([]string, error) {
	return listBackups(l.backupParts(key, snapshotLabel))
}

func listBackups(dir, stem, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, stem+".") || !strings.HasSuffix(name, ext) {
			continue
		}
		// The timestamp must fill the gap exactly, so "movies.json" backups
		// never pick up "movies.old.json" ones.
		if len(name) != len(stem)+1+len(backupTimeFormat)+len(ext) {
			continue
		}
		names = append(names, filepath.Join(dir, name))
	}
	sort.Strings(names)
	return names, nil
}

func (l *LocalFS) prune(dir, stem, ext string) error {
	names, err := listBackups(dir, stem, ext)
	if err != nil {
		return err
	}
	for len(names) > l.keepBackups {
		if err := os.Remove(names[0]); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

func (l *LocalFS) backupParts(key, label string) (dir, stem, ext string) {
	rel := filepath.FromSlash(key)
	ext = filepath.Ext(rel)
	stem = strings.TrimSuffix(filepath.Base(rel), ext)
	if label != "" {
		stem += "." + label
	}
	dir = filepath.Join(l.backupDir, filepath.Dir(rel))
	return dir, stem, ext
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
