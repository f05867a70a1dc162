package constants

// JobStatus is the canonical status for rows in budget_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued  JobStatus = "QUEUED"  // accepted by the async queue
	JobStatusRunning JobStatus = "RUNNING" // pipeline in progress
	JobStatusDone    JobStatus = "DONE"    // items and summary persisted
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)

// ExtractionPath records which gate the orchestrator took for a document.
type ExtractionPath string

const (
	PathText   ExtractionPath = "TEXT_PARALLEL"
	PathVision ExtractionPath = "VISION_SEQUENTIAL"
)
