package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"dialectic/internal/logging"
	"dialectic/internal/types"
)

// SQLiteStore holds job rows and source documents in a single SQLite
// database. It implements both types.JobQueue and types.DocumentLoader.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewSQLiteStore creates or opens the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// initialize creates the required tables.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		stage_slug TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 0,
		payload_json TEXT NOT NULL,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_session ON jobs(session_id);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		stage_slug TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		contribution_type TEXT NOT NULL,
		model_name TEXT NOT NULL,
		model_slug TEXT NOT NULL,
		relationships_json TEXT,
		content_ref TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_stage ON documents(session_id, stage_slug, iteration);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Enqueue inserts a pending job row.
func (s *SQLiteStore) Enqueue(ctx context.Context, job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, session_id, stage_slug, kind, status, attempt, payload_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.SessionID, job.StageSlug, string(job.Kind), string(types.JobStatusPending),
		job.Attempt, payload, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	logging.StoreDebug("enqueued %s job %s", job.Kind, job.ID)
	return nil
}

// Dequeue claims the oldest pending job, marking it processing.
// Returns nil when no pending jobs remain.
func (s *SQLiteStore) Dequeue(ctx context.Context) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		id      string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payload_json FROM jobs
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT 1
	`, string(types.JobStatusPending)).Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	var job types.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}

	job.Status = types.JobStatusProcessing
	job.Attempt++
	job.UpdatedAt = time.Now().UTC()
	if err := s.setStatus(ctx, id, types.JobStatusProcessing, job.Attempt, ""); err != nil {
		return nil, err
	}
	return &job, nil
}

// Complete marks a job completed.
func (s *SQLiteStore) Complete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStatus(ctx, jobID, types.JobStatusCompleted, -1, "")
}

// Fail marks a job failed, recording the cause.
func (s *SQLiteStore) Fail(ctx context.Context, jobID string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.setStatus(ctx, jobID, types.JobStatusFailed, -1, msg)
}

// setStatus updates a job row's status. attempt < 0 leaves the stored
// attempt counter unchanged. Callers hold s.mu.
func (s *SQLiteStore) setStatus(ctx context.Context, jobID string, status types.JobStatus, attempt int, lastError string) error {
	var res sql.Result
	var err error
	if attempt >= 0 {
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, attempt = ?, last_error = ?, updated_at = ? WHERE id = ?
		`, string(status), attempt, lastError, time.Now().UTC(), jobID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?
		`, string(status), lastError, time.Now().UTC(), jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// JobStatus returns the stored status and last error of a job row.
func (s *SQLiteStore) JobStatus(ctx context.Context, jobID string) (types.JobStatus, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var status string
	var lastError sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT status, last_error FROM jobs WHERE id = ?`, jobID).Scan(&status, &lastError)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return "", "", err
	}
	return types.JobStatus(status), lastError.String, nil
}

// SaveDocument registers a source document for later stage planning.
func (s *SQLiteStore) SaveDocument(ctx context.Context, sessionID, stageSlug string, iteration int, doc types.SourceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	relationships, err := json.Marshal(doc.Relationships)
	if err != nil {
		return fmt.Errorf("failed to encode relationships for %s: %w", doc.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, session_id, stage_slug, iteration, contribution_type, model_name, model_slug, relationships_json, content_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, sessionID, stageSlug, iteration, string(doc.ContributionType),
		doc.ModelName, doc.ModelSlug, relationships, doc.ContentRef)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

// LoadDocument implements types.DocumentLoader.
func (s *SQLiteStore) LoadDocument(ctx context.Context, id string) (*types.SourceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, contribution_type, model_name, model_slug, relationships_json, content_ref
		FROM documents WHERE id = ?
	`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return doc, nil
}

// LoadStageDocuments implements types.DocumentLoader.
func (s *SQLiteStore) LoadStageDocuments(ctx context.Context, sessionID, stageSlug string, iteration int) ([]types.SourceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contribution_type, model_name, model_slug, relationships_json, content_ref
		FROM documents
		WHERE session_id = ? AND stage_slug = ? AND iteration = ?
		ORDER BY model_slug, id
	`, sessionID, stageSlug, iteration)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage documents: %w", err)
	}
	defer rows.Close()

	var docs []types.SourceDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*types.SourceDocument, error) {
	var (
		doc              types.SourceDocument
		contributionType string
		relationships    sql.NullString
	)
	err := row.Scan(&doc.ID, &contributionType, &doc.ModelName, &doc.ModelSlug, &relationships, &doc.ContentRef)
	if err != nil {
		return nil, err
	}
	doc.ContributionType = types.ContributionType(contributionType)
	if relationships.Valid && relationships.String != "" && relationships.String != "null" {
		if err := json.Unmarshal([]byte(relationships.String), &doc.Relationships); err != nil {
			return nil, fmt.Errorf("corrupt relationships on %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}
