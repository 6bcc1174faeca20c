package store

import "context"

// RecordFailedJob appends to the background-failure sink (§3); workers
// call this instead of aborting when a per-item job fails (§4.7
// failure semantics: "API error on a job -> increment failed, continue").
func (g *Gateway) RecordFailedJob(ctx context.Context, jobType string, refID *string, payload *string, jobErr string) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO failed_jobs (job_type, ref_id, payload, error, retry_count, failed_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, jobType, refID, payload, jobErr, nowUTC())
	return StoreErrorf(err, "failed to record failed job")
}

// FailedJobs lists recorded failures of a given job type, newest first.
func (g *Gateway) FailedJobs(ctx context.Context, jobType string) ([]FailedJob, error) {
	var jobs []FailedJob
	err := g.db.SelectContext(ctx, &jobs, `
		SELECT * FROM failed_jobs WHERE job_type = ? ORDER BY id DESC
	`, jobType)
	if err != nil {
		return nil, StoreErrorf(err, "failed to list failed jobs")
	}
	return jobs, nil
}
