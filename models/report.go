package models

import "time"

// TestStatus is the aggregate or per-attempt outcome of a test.
type TestStatus string

const (
	StatusPassed   TestStatus = "passed"
	StatusFailed   TestStatus = "failed"
	StatusFlaky    TestStatus = "flaky"
	StatusSkipped  TestStatus = "skipped"
	StatusTimedOut TestStatus = "timedOut"
)

// Location points at the source position of a test definition.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// TestStep is one step of a test execution. Steps nest arbitrarily deep.
type TestStep struct {
	Title      string     `json:"title"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
	Steps      []TestStep `json:"steps,omitempty"`
}

// InlineAttachment is a non-image attachment carried inline in the report
// (stdout captures, trace snippets, custom annotations).
type InlineAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// ExtractedAttempt is one execution try of a test. RetryIndex reflects
// execution order, starting at 0 for the initial try.
type ExtractedAttempt struct {
	RetryIndex  int                `json:"retry_index"`
	Status      TestStatus         `json:"status"`
	DurationMs  int64              `json:"duration_ms"`
	Error       string             `json:"error,omitempty"`
	ErrorStack  string             `json:"error_stack,omitempty"`
	Screenshots []string           `json:"screenshots,omitempty"`
	Attachments []InlineAttachment `json:"attachments,omitempty"`
	Steps       []TestStep         `json:"steps,omitempty"`
	StartTime   *time.Time         `json:"start_time,omitempty"`
}

// ExtractedTest is the canonical record for one test within one upload.
// Name and File together form the natural key within a project.
//
// Duration is the sum of all attempts' durations, not the wall time of
// the final attempt.
type ExtractedTest struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	File        string             `json:"file"`
	Status      TestStatus         `json:"status"`
	Duration    int64              `json:"duration"`
	WorkerIndex *int               `json:"worker_index,omitempty"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	Attempts    []ExtractedAttempt `json:"attempts"`
	Location    *Location          `json:"location,omitempty"`
}

// ProcessedReport is the output of decoding and normalizing one archive.
type ProcessedReport struct {
	Tests      []ExtractedTest   `json:"tests"`
	CIMetadata map[string]string `json:"ci_metadata,omitempty"`
	StartTime  *time.Time        `json:"start_time,omitempty"`
}
