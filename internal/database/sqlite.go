package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"hist-go/internal/database/migrations"
	"hist-go/internal/hist"
	"hist-go/internal/model"
)

// maxBlobLookup bounds the number of bind variables in one FindBlobs query.
const maxBlobLookup = 500

// SQLiteDatabase implements the hist.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Project operations

func (s *SQLiteDatabase) CreateProject(ctx context.Context, id string, createdAt time.Time) (*model.Project, error) {
	_, err := s.db.ExecContext(ctx, "INSERT INTO projects (id, created_at) VALUES (?, ?)", id, createdAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return &model.Project{ID: id, CreatedAt: createdAt.UTC()}, nil
}

func (s *SQLiteDatabase) FindProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx, "SELECT id, created_at FROM projects WHERE id = ?", id).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding project: %w", err)
	}
	return &p, nil
}

func (s *SQLiteDatabase) ListProjects(ctx context.Context) ([]*model.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, created_at FROM projects ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var result []*model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return result, nil
}

// Blob operations

func (s *SQLiteDatabase) InsertBlob(ctx context.Context, blob *model.Blob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (project_id, hash, byte_length, string_length, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project_id, hash) DO NOTHING`,
		blob.ProjectID, blob.Hash, blob.ByteLength, nullInt(blob.StringLength), blob.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

const blobColumns = "project_id, hash, byte_length, string_length, created_at"

func (s *SQLiteDatabase) FindBlob(ctx context.Context, projectID, hash string) (*model.Blob, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+blobColumns+" FROM blobs WHERE project_id = ? AND hash = ?", projectID, hash)
	blob, err := scanBlob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding blob: %w", err)
	}
	return blob, nil
}

func (s *SQLiteDatabase) FindBlobs(ctx context.Context, projectID string, hashes []string) ([]*model.Blob, error) {
	var result []*model.Blob
	for start := 0; start < len(hashes); start += maxBlobLookup {
		batch := hashes[start:min(start+maxBlobLookup, len(hashes))]
		args := make([]any, 0, len(batch)+1)
		args = append(args, projectID)
		for _, h := range batch {
			args = append(args, h)
		}
		query := "SELECT " + blobColumns + " FROM blobs WHERE project_id = ? AND hash IN (?" +
			strings.Repeat(", ?", len(batch)-1) + ")"

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("finding blobs: %w", err)
		}
		for rows.Next() {
			blob, err := scanBlob(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning blob: %w", err)
			}
			result = append(result, blob)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("finding blobs: %w", err)
		}
	}
	return result, nil
}

// Chunk operations

const chunkColumns = "id, project_id, start_version, end_version, end_timestamp, created_at"

func (s *SQLiteDatabase) FindLatestChunk(ctx context.Context, projectID string) (*model.Chunk, error) {
	return s.findChunk(ctx, "finding latest chunk",
		"WHERE project_id = ? ORDER BY end_version DESC, start_version DESC LIMIT 1", projectID)
}

func (s *SQLiteDatabase) FindChunkForVersion(ctx context.Context, projectID string, version int) (*model.Chunk, error) {
	return s.findChunk(ctx, "finding chunk for version",
		"WHERE project_id = ? AND start_version <= ? AND end_version >= ? ORDER BY end_version ASC, start_version ASC LIMIT 1",
		projectID, version, version)
}

func (s *SQLiteDatabase) FindChunkForTimestamp(ctx context.Context, projectID string, ts time.Time) (*model.Chunk, error) {
	return s.findChunk(ctx, "finding chunk for timestamp",
		"WHERE project_id = ? AND end_timestamp >= ? ORDER BY end_version ASC LIMIT 1",
		projectID, ts.UnixMilli())
}

func (s *SQLiteDatabase) FindLastChunkBeforeTimestamp(ctx context.Context, projectID string, ts time.Time) (*model.Chunk, error) {
	return s.findChunk(ctx, "finding chunk before timestamp",
		"WHERE project_id = ? AND end_timestamp < ? ORDER BY end_version DESC LIMIT 1",
		projectID, ts.UnixMilli())
}

func (s *SQLiteDatabase) FindChunkByID(ctx context.Context, projectID, chunkID string) (*model.Chunk, error) {
	return s.findChunk(ctx, "finding chunk by id", "WHERE project_id = ? AND id = ?", projectID, chunkID)
}

func (s *SQLiteDatabase) ListChunks(ctx context.Context, projectID string) ([]*model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE project_id = ? ORDER BY start_version", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var result []*model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		result = append(result, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) InsertChunk(ctx context.Context, chunk *model.Chunk) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, project_id, start_version, end_version, end_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.ProjectID, chunk.StartVersion, chunk.EndVersion,
		nullMillis(chunk.EndTimestamp), chunk.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting chunk: %w", err)
	}
	return true, nil
}

func (s *SQLiteDatabase) ReplaceChunk(ctx context.Context, chunk *model.Chunk, oldEndVersion int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks SET id = ?, end_version = ?, end_timestamp = ?
		WHERE project_id = ? AND start_version = ? AND end_version = ?`,
		chunk.ID, chunk.EndVersion, nullMillis(chunk.EndTimestamp),
		chunk.ProjectID, chunk.StartVersion, oldEndVersion)
	if err != nil {
		return false, fmt.Errorf("replacing chunk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("replacing chunk: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteDatabase) findChunk(ctx context.Context, what, where string, args ...any) (*model.Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks "+where, args...)
	chunk, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return chunk, nil
}

// Operation log

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, operation, parameters, projectID string, startedAt time.Time) (*model.Operation, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (operation, parameters, project_id, status, started_at)
		VALUES (?, ?, ?, 'running', ?)`,
		operation, parameters, projectID, startedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		ProjectID:  projectID,
		Status:     "running",
		StartedAt:  startedAt.UTC(),
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE operations SET status = ?, finished_at = ? WHERE id = ?", status, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*model.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, parameters, project_id, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var result []*model.Operation
	for rows.Next() {
		var op model.Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.ProjectID, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			op.FinishedAt = &finished.Time
		}
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBlob(row scanner) (*model.Blob, error) {
	var b model.Blob
	var stringLength sql.NullInt64
	if err := row.Scan(&b.ProjectID, &b.Hash, &b.ByteLength, &stringLength, &b.CreatedAt); err != nil {
		return nil, err
	}
	if stringLength.Valid {
		n := int(stringLength.Int64)
		b.StringLength = &n
	}
	return &b, nil
}

func scanChunk(row scanner) (*model.Chunk, error) {
	var c model.Chunk
	var endTimestamp sql.NullInt64
	if err := row.Scan(&c.ID, &c.ProjectID, &c.StartVersion, &c.EndVersion, &endTimestamp, &c.CreatedAt); err != nil {
		return nil, err
	}
	if endTimestamp.Valid {
		ts := time.UnixMilli(endTimestamp.Int64).UTC()
		c.EndTimestamp = &ts
	}
	return &c, nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullMillis(ts *time.Time) sql.NullInt64 {
	if ts == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ts.UnixMilli(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Compile-time check that SQLiteDatabase implements hist.Database interface
var _ hist.Database = (*SQLiteDatabase)(nil)
