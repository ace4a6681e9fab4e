package domain

import "time"

type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobExtracting  JobStatus = "extracting"
	JobClassifying JobStatus = "classifying"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
)

// AnalysisJob is one queued asynchronous analysis of a document.
type AnalysisJob struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Request   AnalyzeRequest `json:"request"`
	Status    JobStatus      `json:"status"`
	Report    *AnalyzeReport `json:"report,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
