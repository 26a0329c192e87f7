package shared

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const shaderSchema = `
CREATE TABLE IF NOT EXISTS shaders (
	id          TEXT PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	creator_id  TEXT NOT NULL,
	lineage_id  TEXT NOT NULL,
	parent_id   TEXT REFERENCES shaders(id),
	html        TEXT NOT NULL CHECK (html <> ''),
	json        TEXT,
	metadata    TEXT
);
CREATE INDEX IF NOT EXISTS idx_shaders_created ON shaders(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_shaders_creator_created ON shaders(creator_id, created_at DESC);
`

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// SQLiteShaderStore keeps shaders in one relational table. Timestamps are
// stored as unix milliseconds.
type SQLiteShaderStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLiteShaderStore opens (and creates) the database at path. ":memory:"
// gives a private in-process database.
func OpenSQLiteShaderStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteShaderStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &StorageError{Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if path == ":memory:" {
		// every new connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, &StorageError{Op: "open", Err: fmt.Errorf("%s: %w", p, err)}
		}
	}
	if _, err := db.ExecContext(ctx, shaderSchema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}

	return &SQLiteShaderStore{db: db, log: logger.Named("db")}, nil
}

func (s *SQLiteShaderStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteShaderStore) Insert(ctx context.Context, shader *Shader) error {
	meta, err := marshalMetadata(shader.Metadata)
	if err != nil {
		return &StorageError{Op: "insert", Err: err}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shaders (id, created_at, creator_id, lineage_id, parent_id, html, json, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		shader.ID,
		shader.CreatedAt.UnixMilli(),
		shader.CreatorID,
		shader.LineageID,
		nullString(shader.ParentID),
		shader.HTML,
		shader.JSON,
		meta,
	)
	if err != nil {
		s.log.Error("insert failed", zap.String("id", shader.ID), zap.Error(err))
		return &StorageError{Op: "insert", Err: err}
	}
	s.log.Info("insert ok", zap.String("id", shader.ID), zap.String("lineage_id", shader.LineageID))
	return nil
}

func (s *SQLiteShaderStore) GetByID(ctx context.Context, id string) (*Shader, error) {
	row := s.db.QueryRowContext(ctx, selectShader+` WHERE id = ?`, id)
	shader, err := scanShader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.Error("get failed", zap.String("id", id), zap.Error(err))
		return nil, &StorageError{Op: "get", Err: err}
	}
	return shader, nil
}

func (s *SQLiteShaderStore) Recent(ctx context.Context, f RecentFilter) ([]Shader, error) {
	limit := f.ClampLimit()

	var (
		rows *sql.Rows
		err  error
	)
	if f.CreatorID != "" {
		rows, err = s.db.QueryContext(ctx,
			selectShader+` WHERE creator_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
			f.CreatorID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			selectShader+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	}
	if err != nil {
		s.log.Error("recent failed", zap.Error(err))
		return nil, &StorageError{Op: "recent", Err: err}
	}
	defer rows.Close()

	shaders := make([]Shader, 0, limit)
	for rows.Next() {
		shader, err := scanShader(rows)
		if err != nil {
			return nil, &StorageError{Op: "recent", Err: err}
		}
		shaders = append(shaders, *shader)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}
	return shaders, nil
}

const selectShader = `SELECT id, created_at, creator_id, lineage_id, parent_id, html, json, metadata FROM shaders`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShader(row rowScanner) (*Shader, error) {
	var (
		shader    Shader
		createdMs int64
		parentID  sql.NullString
		meta      sql.NullString
	)
	if err := row.Scan(&shader.ID, &createdMs, &shader.CreatorID, &shader.LineageID,
		&parentID, &shader.HTML, &shader.JSON, &meta); err != nil {
		return nil, err
	}
	shader.CreatedAt = time.UnixMilli(createdMs).UTC()
	shader.ParentID = parentID.String
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &shader.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &shader, nil
}

func marshalMetadata(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
