package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"asset-catalog/internal/metrics"
)

// CreateScanJob inserts a new running job row and returns it.
func (c *Catalog) CreateScanJob(volumeID int64, jobType, targetPath string) (*ScanJob, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_scan_job", start, err) }()

	job := &ScanJob{
		ID:         uuid.New().String(),
		VolumeID:   volumeID,
		JobType:    jobType,
		TargetPath: targetPath,
		Status:     JobRunning,
		Phase:      PhaseEnumerating,
		StartedAt:  time.Now(),
	}

	tx, err := c.Begin()
	if err != nil {
		return nil, err
	}

	_, execErr := tx.Exec(`
		INSERT INTO scan_jobs (id, volume_id, job_type, target_path, status, phase, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.VolumeID, job.JobType, job.TargetPath, job.Status, job.Phase, job.StartedAt.Unix(),
	)
	if err = c.End(tx, execErr); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateScanJobProgress writes the job's phase and counters. Called between
// file iterations, never mid-file.
func (c *Catalog) UpdateScanJobProgress(job *ScanJob) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_scan_job_progress", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		UPDATE scan_jobs SET
			phase = ?, progress_current = ?, progress_total = ?,
			items_processed = ?, items_skipped = ?, items_failed = ?, items_missing = ?
		WHERE id = ?`,
		job.Phase, job.ProgressCurrent, job.ProgressTotal,
		job.ItemsProcessed, job.ItemsSkipped, job.ItemsFailed, job.ItemsMissing,
		job.ID,
	)
	err = c.End(tx, execErr)
	return err
}

// FinishScanJob records the terminal status and completion time.
func (c *Catalog) FinishScanJob(job *ScanJob, status string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("finish_scan_job", start, err) }()

	now := time.Now()
	job.Status = status
	job.Phase = PhaseDone
	job.CompletedAt = &now

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		UPDATE scan_jobs SET
			status = ?, phase = ?, completed_at = ?,
			progress_current = ?, progress_total = ?,
			items_processed = ?, items_skipped = ?, items_failed = ?, items_missing = ?
		WHERE id = ?`,
		job.Status, job.Phase, now.Unix(),
		job.ProgressCurrent, job.ProgressTotal,
		job.ItemsProcessed, job.ItemsSkipped, job.ItemsFailed, job.ItemsMissing,
		job.ID,
	)
	err = c.End(tx, execErr)
	return err
}

// CancelScanJob marks a running job cancelled. The scanner observes the flag
// between file iterations.
func (c *Catalog) CancelScanJob(jobID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("cancel_scan_job", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`UPDATE scan_jobs SET status = ? WHERE id = ? AND status = ?`,
		JobCancelled, jobID, JobRunning)
	err = c.End(tx, execErr)
	return err
}

// IsJobCancelled reports whether the job has been marked cancelled.
func (c *Catalog) IsJobCancelled(ctx context.Context, jobID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var status string
	err := c.db.QueryRowContext(ctx, `SELECT status FROM scan_jobs WHERE id = ?`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == JobCancelled, nil
}

// GetScanJob returns the job row with the given id, or nil.
func (c *Catalog) GetScanJob(ctx context.Context, jobID string) (*ScanJob, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var job ScanJob
	var startedAt int64
	var completedAt sql.NullInt64

	err := c.db.QueryRowContext(ctx, `
		SELECT id, volume_id, job_type, target_path, status, phase,
			progress_current, progress_total,
			items_processed, items_skipped, items_failed, items_missing,
			started_at, completed_at
		FROM scan_jobs WHERE id = ?`, jobID).Scan(
		&job.ID, &job.VolumeID, &job.JobType, &job.TargetPath, &job.Status, &job.Phase,
		&job.ProgressCurrent, &job.ProgressTotal,
		&job.ItemsProcessed, &job.ItemsSkipped, &job.ItemsFailed, &job.ItemsMissing,
		&startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.StartedAt = time.Unix(startedAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		job.CompletedAt = &t
	}
	return &job, nil
}

// RecordJobError stores one file-level failure against a job.
func (c *Catalog) RecordJobError(jobID, filePath, errorType, message string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_job_error", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`
		INSERT INTO job_errors (job_id, file_path, error_type, error_message)
		VALUES (?, ?, ?, ?)`,
		jobID, filePath, errorType, message,
	)
	err = c.End(tx, execErr)
	if err == nil {
		metrics.ScanErrorsTotal.WithLabelValues(errorType).Inc()
	}
	return err
}

// ListJobErrors returns the file-level failures recorded for a job.
func (c *Catalog) ListJobErrors(ctx context.Context, jobID string) ([]*JobError, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT job_id, file_path, error_type, error_message, created_at
		FROM job_errors WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*JobError
	for rows.Next() {
		var je JobError
		var created int64
		if err := rows.Scan(&je.JobID, &je.FilePath, &je.ErrorType, &je.ErrorMessage, &created); err != nil {
			return nil, err
		}
		je.CreatedAt = time.Unix(created, 0)
		out = append(out, &je)
	}
	return out, rows.Err()
}
