package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	request JSONB NOT NULL,
	status TEXT NOT NULL,
	report JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_user ON analysis_jobs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	requestJSON, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("marshal job request: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_jobs (id, user_id, request, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		job.ID, job.UserID, requestJSON, string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, request, status, report, error_message, created_at, updated_at
FROM analysis_jobs
WHERE id = $1
`, jobID)

	var job domain.AnalysisJob
	var requestRaw []byte
	var reportRaw []byte
	var status string

	err := row.Scan(
		&job.ID, &job.UserID, &requestRaw, &status, &reportRaw, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id %s", jobID))
		}
		return nil, fmt.Errorf("scan analysis job: %w", err)
	}

	if err := json.Unmarshal(requestRaw, &job.Request); err != nil {
		return nil, fmt.Errorf("unmarshal job request: %w", err)
	}
	if len(reportRaw) > 0 {
		job.Report = &domain.AnalyzeReport{}
		if err := json.Unmarshal(reportRaw, job.Report); err != nil {
			return nil, fmt.Errorf("unmarshal job report: %w", err)
		}
	}
	job.Status = domain.JobStatus(status)
	// Request.UserID has a json:"-" tag; restore it from the column.
	job.Request.UserID = job.UserID
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE analysis_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, jobID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *JobRepository) SaveReport(ctx context.Context, jobID string, report *domain.AnalyzeReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal job report: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE analysis_jobs
SET report = $2, updated_at = $3
WHERE id = $1
`, jobID, reportJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save job report: %w", err)
	}
	return nil
}
