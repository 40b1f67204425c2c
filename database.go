package centerline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Database wraps the optional conversion-job history store. A nil *Database
// is valid everywhere and means "history disabled".
type Database struct {
	conn *sql.DB
}

// NewDatabase creates a new database connection.
func NewDatabase(cfg DatabaseConfig) (*Database, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected successfully")

	return &Database{conn: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.conn.Close()
}

// InitSchema creates the job-history table when it does not exist yet.
func (d *Database) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS conversion_jobs (
			id           TEXT PRIMARY KEY,
			filename     TEXT NOT NULL,
			mode         TEXT NOT NULL,
			profile      TEXT NOT NULL,
			status       TEXT NOT NULL,
			segments     INTEGER NOT NULL DEFAULT 0,
			coordinates  INTEGER NOT NULL DEFAULT 0,
			artifacts    INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)
	`

	if _, err := d.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create conversion_jobs table: %w", err)
	}

	return nil
}

// CreateJob inserts a new job row in "processing" state.
func (d *Database) CreateJob(ctx context.Context, job *ConversionJob) error {
	query := `
		INSERT INTO conversion_jobs (id, filename, mode, profile, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := d.conn.ExecContext(ctx, query,
		job.ID, job.Filename, job.Mode, job.Profile, job.Status, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// CompleteJob marks a job as completed with its final counts.
func (d *Database) CompleteJob(ctx context.Context, jobID string, segments, coordinates, artifacts int) error {
	query := `
		UPDATE conversion_jobs
		SET status = 'completed', segments = $1, coordinates = $2, artifacts = $3, completed_at = NOW()
		WHERE id = $4
	`

	result, err := d.conn.ExecContext(ctx, query, segments, coordinates, artifacts, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}

	return nil
}

// FailJob marks a job as failed with its error message.
func (d *Database) FailJob(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE conversion_jobs
		SET status = 'failed', error_message = $1, completed_at = NOW()
		WHERE id = $2
	`

	if _, err := d.conn.ExecContext(ctx, query, errorMsg, jobID); err != nil {
		return fmt.Errorf("failed to update job error: %w", err)
	}

	return nil
}

// GetJob retrieves a specific job by ID.
func (d *Database) GetJob(ctx context.Context, jobID string) (*ConversionJob, error) {
	query := `
		SELECT id, filename, mode, profile, status, segments, coordinates, artifacts,
		       error_message, created_at, completed_at
		FROM conversion_jobs
		WHERE id = $1
	`

	job := &ConversionJob{}
	err := d.conn.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.Filename, &job.Mode, &job.Profile, &job.Status,
		&job.Segments, &job.Coordinates, &job.Artifacts,
		&job.ErrorMessage, &job.CreatedAt, &job.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	return job, nil
}

// RecentJobs retrieves the most recent jobs, newest first.
func (d *Database) RecentJobs(ctx context.Context, limit int) ([]*ConversionJob, error) {
	query := `
		SELECT id, filename, mode, profile, status, segments, coordinates, artifacts,
		       error_message, created_at, completed_at
		FROM conversion_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := d.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ConversionJob
	for rows.Next() {
		job := &ConversionJob{}
		err := rows.Scan(
			&job.ID, &job.Filename, &job.Mode, &job.Profile, &job.Status,
			&job.Segments, &job.Coordinates, &job.Artifacts,
			&job.ErrorMessage, &job.CreatedAt, &job.CompletedAt,
		)
		if err != nil {
			slog.Error("failed to scan job row", "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}
