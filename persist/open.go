package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaym/shelf/objstore"
)

const (
	databaseFile    = "database.json"
	remotePrefix    = "data/"
	defaultKeep     = 10
	defaultDataDir  = "data"
	defaultSQLiteDB = "shelf.db"
	backupDirName   = "backups"
)

// Config selects and configures the persistence strategy.
type Config struct {
	Backend        string                `mapstructure:"backend"`
	DataDir        string                `mapstructure:"data_dir"`
	BackupDir      string                `mapstructure:"backup_dir"`
	BackupKeep     int                   `mapstructure:"backup_keep"`
	BackupInterval time.Duration         `mapstructure:"backup_interval"`
	SQLitePath     string                `mapstructure:"sqlite_path"`
	GitHub         objstore.GitHubConfig `mapstructure:"github"`
}

// ResolveKind returns the configured backend, or derives one when unset:
// remote-versioned when GitHub is configured, sharded-file otherwise.
func (c Config) ResolveKind() (Kind, error) {
	if c.Backend != "" {
		return ParseKind(c.Backend)
	}
	if c.GitHub.Configured() {
		return KindRemoteVersioned, nil
	}
	return KindShardedFile, nil
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.DataDir, backupDirName)
	}
	if c.BackupKeep == 0 {
		c.BackupKeep = defaultKeep
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, defaultSQLiteDB)
	}
	return c
}

// Open builds the adapter for the resolved strategy.
func Open(cfg Config) (Adapter, error) {
	kind, err := cfg.ResolveKind()
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	switch kind {
	case KindNone:
		return NewSectioned(kind, objstore.NewMemory(), ""), nil
	case KindLocalFile:
		return NewWhole(kind, objstore.NewLocalFS(cfg.DataDir), databaseFile), nil
	case KindShardedFile:
		store := objstore.NewLocalFS(cfg.DataDir, objstore.WithBackups(cfg.BackupDir, cfg.BackupKeep))
		return NewSectioned(kind, store, ""), nil
	case KindRemoteVersioned:
		if !cfg.GitHub.Configured() {
			return nil, errors.New("remote-versioned storage needs a GitHub token, owner and repo")
		}
		return NewSectioned(kind, objstore.NewGitHub(cfg.GitHub, nil), remotePrefix), nil
	case KindSQLite:
		store, err := objstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return NewSectioned(kind, store, ""), nil
	}
	return nil, fmt.Errorf("unhandled storage backend %q", kind)
}

// RunBackups calls a.Backup every interval until ctx is done. It returns
// early for a zero interval or an adapter without backup support.
func RunBackups(ctx context.Context, a Adapter, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			paths, err := a.Backup(ctx)
			if errors.Is(err, ErrBackupUnsupported) {
				log.Debug().Str("backend", string(a.Kind())).Msg("periodic backups disabled")
				return
			}
			if err != nil {
				log.Error().Err(err).Msg("periodic backup failed")
				continue
			}
			log.Info().Int("files", len(paths)).Msg("periodic backup complete")
		}
	}
}
