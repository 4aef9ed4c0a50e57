package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateJob inserts a new pending upload job.
func (r *Repository) CreateJob(ctx context.Context, job *UploadJob) error {
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	if job.Origin == "" {
		job.Origin = JobOriginWeb
	}
	query := `
		INSERT INTO upload_jobs (id, owner, origin, file_name, file_size, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
	`
	if _, err := r.db.ExecContext(ctx, query,
		job.ID, job.Owner, job.Origin, job.FileName, job.FileSize, job.Status); err != nil {
		return fmt.Errorf("failed to create upload job: %w", err)
	}
	job.CreatedAt = time.Now().UTC()
	return nil
}

// ClaimJob transitions a pending job to processing. It returns false when
// the job is missing or already claimed, enforcing the
// at-most-one-concurrent-processing-per-job invariant.
func (r *Repository) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE upload_jobs
		SET status = ?, started_at = datetime('now')
		WHERE id = ? AND status = ?
	`
	res, err := r.db.ExecContext(ctx, query, JobStatusProcessing, jobID, JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to inspect claim result: %w", err)
	}
	return n == 1, nil
}

// UpdateJobProgress records per-device progress and running totals.
func (r *Repository) UpdateJobProgress(ctx context.Context, jobID string, progress, found, processed, skipped, credentials, files int) error {
	query := `
		UPDATE upload_jobs
		SET progress = ?, devices_found = ?, devices_processed = ?, devices_skipped = ?,
		    total_credentials = ?, total_files = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query,
		progress, found, processed, skipped, credentials, files, jobID); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// FinishJob moves a job to a terminal status with an optional error message.
func (r *Repository) FinishJob(ctx context.Context, jobID string, status JobStatus, errorMessage string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	var msg *string
	if errorMessage != "" {
		msg = &errorMessage
	}
	query := `
		UPDATE upload_jobs
		SET status = ?, error_message = ?, completed_at = datetime('now'),
		    progress = CASE WHEN ? = 'completed' THEN 100 ELSE progress END
		WHERE id = ? AND status NOT IN ('completed', 'failed', 'cancelled')
	`
	if _, err := r.db.ExecContext(ctx, query, status, msg, status, jobID); err != nil {
		return fmt.Errorf("failed to finish job %s: %w", jobID, err)
	}
	return nil
}

// GetJob fetches a job by id, returning nil when it does not exist.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*UploadJob, error) {
	query := `
		SELECT id, owner, origin, file_name, file_size, status, progress,
		       devices_found, devices_processed, devices_skipped,
		       total_credentials, total_files, error_message,
		       created_at, started_at, completed_at
		FROM upload_jobs WHERE id = ?
	`
	job := &UploadJob{}
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.Owner, &job.Origin, &job.FileName, &job.FileSize,
		&job.Status, &job.Progress,
		&job.DevicesFound, &job.DevicesProcessed, &job.DevicesSkipped,
		&job.TotalCredentials, &job.TotalFiles, &job.ErrorMessage,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs, newest first.
func (r *Repository) ListJobs(ctx context.Context, limit int) ([]*UploadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, owner, origin, file_name, file_size, status, progress,
		       devices_found, devices_processed, devices_skipped,
		       total_credentials, total_files, error_message,
		       created_at, started_at, completed_at
		FROM upload_jobs ORDER BY created_at DESC, id DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*UploadJob
	for rows.Next() {
		job := &UploadJob{}
		if err := rows.Scan(
			&job.ID, &job.Owner, &job.Origin, &job.FileName, &job.FileSize,
			&job.Status, &job.Progress,
			&job.DevicesFound, &job.DevicesProcessed, &job.DevicesSkipped,
			&job.TotalCredentials, &job.TotalFiles, &job.ErrorMessage,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
