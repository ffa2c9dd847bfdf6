package objstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

type preparedStatementKey string

const (
	getObjectStmt    preparedStatementKey = "getObjectStmt"
	insertObjectStmt preparedStatementKey = "insertObjectStmt"
	updateObjectStmt preparedStatementKey = "updateObjectStmt"
	statObjectStmt   preparedStatementKey = "statObjectStmt"
)

// SQLite keeps objects as rows of a single table. Versions are integers
// bumped on every write and checked with a conditional UPDATE.
type SQLite struct {
	db                 *sql.DB
	preparedStatements map[preparedStatementKey]*sql.Stmt
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialised and lets ":memory:" work.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close() // nolint: errcheck
		log.Error().Err(err).Msg("Failed to execute schema.sql")
		return nil, err
	}

	preparedStatements := make(map[preparedStatementKey]*sql.Stmt)
	for key, query := range map[preparedStatementKey]string{
		getObjectStmt:    `SELECT data, version FROM objects WHERE key = ?`,
		insertObjectStmt: `INSERT INTO objects (key, data, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT (key) DO NOTHING`,
		updateObjectStmt: `UPDATE objects SET data = ?, version = version + 1, updated_at = ? WHERE key = ? AND version = ?`,
		statObjectStmt:   `SELECT length(data), updated_at FROM objects WHERE key = ?`,
	} {
		stmt, err := db.Prepare(query)
		if err != nil {
			db.Close() // nolint: errcheck
			log.Error().Err(err).Msg("Failed to prepare statement")
			return nil, err
		}
		preparedStatements[key] = stmt
	}

	return &SQLite{db: db, preparedStatements: preparedStatements}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Get(ctx context.Context, key string) (Object, error) {
	var (
		data    []byte
		version int64
	)
	err := s.preparedStatements[getObjectStmt].QueryRowContext(ctx, key).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, err
	}
	return Object{Data: data, Version: strconv.FormatInt(version, 10)}, nil
}

func (s *SQLite) Put(ctx context.Context, key string, data []byte, version string) (string, error) {
	now := time.Now().Unix()
	if version == "" {
		res, err := s.preparedStatements[insertObjectStmt].ExecContext(ctx, key, data, now)
		if err != nil {
			return "", err
		}
		if n, err := res.RowsAffected(); err != nil {
			return "", err
		} else if n == 0 {
			return "", ErrVersionMismatch
		}
		return "1", nil
	}

	current, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return "", ErrVersionMismatch
	}
	res, err := s.preparedStatements[updateObjectStmt].ExecContext(ctx, data, now, key, current)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrVersionMismatch
	}
	return strconv.FormatInt(current+1, 10), nil
}

func (s *SQLite) Stat(ctx context.Context, key string) (Info, error) {
	var size, updated int64
	err := s.preparedStatements[statObjectStmt].QueryRowContext(ctx, key).Scan(&size, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	return Info{Key: key, Size: size, ModTime: time.Unix(updated, 0)}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
