// Package persistence provides SQLite-based storage for build history.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"devteam/pkg/logx"
)

// BuildRecord is one persisted build pass.
type BuildRecord struct {
	ID           string
	ProjectName  string
	ProjectPath  string
	Requirements string
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Features     []FeatureRecord
}

// FeatureRecord is one persisted feature result. Position preserves feature
// discovery order.
type FeatureRecord struct {
	Position       int
	Name           string
	Status         string
	Implementation string
	Tests          string
	Review         string
	Error          string
	Branch         string
}

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	project_path TEXT NOT NULL,
	requirements TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_results (
	build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	implementation TEXT,
	tests TEXT,
	review TEXT,
	error TEXT,
	branch TEXT,
	PRIMARY KEY (build_id, position)
);
`

// Store persists build history in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the build history database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db, logger: logx.NewLogger("persistence")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SaveBuild writes a build and its feature results in one transaction.
func (s *Store) SaveBuild(ctx context.Context, record *BuildRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds (id, project_name, project_path, requirements, status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ProjectName, record.ProjectPath, record.Requirements,
		record.Status, record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}

	for i := range record.Features {
		f := &record.Features[i]
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO feature_results (build_id, position, name, status, implementation, tests, review, error, branch)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, f.Position, f.Name, f.Status, f.Implementation, f.Tests, f.Review, f.Error, f.Branch)
		if err != nil {
			return fmt.Errorf("failed to insert feature result %d: %w", f.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build: %w", err)
	}
	s.logger.Debug("saved build %s with %d feature results", record.ID, len(record.Features))
	return nil
}

// GetBuild loads one build with its feature results in discovery order.
func (s *Store) GetBuild(ctx context.Context, id string) (*BuildRecord, error) {
	record := &BuildRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_name, project_path, requirements, status, started_at, finished_at
		 FROM builds WHERE id = ?`, id).
		Scan(&record.ID, &record.ProjectName, &record.ProjectPath, &record.Requirements,
			&record.Status, &record.StartedAt, &record.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load build %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, name, status, implementation, tests, review, error, branch
		 FROM feature_results WHERE build_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature results for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var f FeatureRecord
		if err := rows.Scan(&f.Position, &f.Name, &f.Status, &f.Implementation, &f.Tests, &f.Review, &f.Error, &f.Branch); err != nil {
			return nil, fmt.Errorf("failed to scan feature result: %w", err)
		}
		record.Features = append(record.Features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading feature results: %w", err)
	}

	return record, nil
}

// ListBuilds returns build summaries, most recent first, without feature
// results.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_name, project_path, requirements, status, started_at, finished_at
		 FROM builds ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []BuildRecord
	for rows.Next() {
		var r BuildRecord
		if err := rows.Scan(&r.ID, &r.ProjectName, &r.ProjectPath, &r.Requirements, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading builds: %w", err)
	}
	return records, nil
}
