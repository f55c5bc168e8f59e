package models

import "time"

// UploadMetadata is the caller-supplied metadata accompanying a report archive.
// ContentHash is optional; when the uploader already computed the hash client-side
// the server skips re-hashing.
type UploadMetadata struct {
	Environment string `json:"environment" validate:"required,min=1"`
	Trigger     string `json:"trigger" validate:"required,min=1"`
	Suite       string `json:"suite" validate:"required,min=1"`
	Branch      string `json:"branch"`
	Commit      string `json:"commit"`
	ContentHash string `json:"content_hash" validate:"hex"`
	FileName    string `json:"file_name"`
}

// ApplyDefaults fills the documented fallbacks for optional fields.
func (m *UploadMetadata) ApplyDefaults() {
	if m.Branch == "" {
		m.Branch = "unknown"
	}
	if m.Commit == "" {
		m.Commit = "unknown"
	}
}

// RunSummary is the aggregate record for one processed upload.
type RunSummary struct {
	ID          string            `json:"run_id"`
	ProjectID   int64             `json:"project_id"`
	Suite       string            `json:"suite"`
	TotalTests  int               `json:"total_tests"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	Flaky       int               `json:"flaky"`
	Skipped     int               `json:"skipped"`
	Duration    int64             `json:"duration"`
	Branch      string            `json:"branch"`
	Commit      string            `json:"commit"`
	Environment string            `json:"environment"`
	Trigger     string            `json:"trigger"`
	ContentHash string            `json:"content_hash"`
	FileName    string            `json:"file_name,omitempty"`
	CIMetadata  map[string]string `json:"ci_metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CanonicalTest is the identity record for a test within a project,
// shared across all historical executions. Keyed by (project, file, name).
type CanonicalTest struct {
	ID      int64  `json:"id"`
	Project int64  `json:"project_id"`
	File    string `json:"file"`
	Name    string `json:"name"`
}

// ExecutionRecord is one upload's outcome for one canonical test.
type ExecutionRecord struct {
	ID             int64      `json:"id"`
	RunID          string     `json:"run_id"`
	TestID         int64      `json:"test_id"`
	Status         TestStatus `json:"status"`
	Duration       int64      `json:"duration"`
	Error          string     `json:"error,omitempty"`
	ErrorStack     string     `json:"error_stack,omitempty"`
	Screenshots    []string   `json:"screenshots,omitempty"`
	StepsRef       string     `json:"steps_ref,omitempty"`
	LastFailedStep *TestStep  `json:"last_failed_step,omitempty"`
	WorkerIndex    *int       `json:"worker_index,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

// AttemptRecord is one retry of one execution, persisted only when the
// test ran more than once or its single attempt carries durable detail.
type AttemptRecord struct {
	ExecutionID int64      `json:"execution_id"`
	RetryIndex  int        `json:"retry_index"`
	Status      TestStatus `json:"status"`
	DurationMs  int64      `json:"duration_ms"`
	Error       string     `json:"error,omitempty"`
	ErrorStack  string     `json:"error_stack,omitempty"`
	Screenshots []string   `json:"screenshots,omitempty"`
	StepsRef    string     `json:"steps_ref,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
}

// DuplicateInfo identifies the previously stored run that matched an
// upload's content hash.
type DuplicateInfo struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadResult is the outcome of one upload. Exactly one of Run or
// Duplicate is set; a duplicate is a successful no-op, not an error.
type UploadResult struct {
	Run       *RunSummary    `json:"run,omitempty"`
	Duplicate *DuplicateInfo `json:"duplicate,omitempty"`
}

// IsDuplicate reports whether the upload was rejected as a re-upload of
// already stored content.
func (r *UploadResult) IsDuplicate() bool {
	return r.Duplicate != nil
}
