package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/parser"
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/google/uuid"
)

// Upload pipeline states. FAILED is reachable from any state; REJECTED
// (duplicate) and PERSISTED are terminal.
type uploadState string

const (
	stateReceived         uploadState = "RECEIVED"
	stateDecoded          uploadState = "DECODED"
	stateNormalized       uploadState = "NORMALIZED"
	stateHashed           uploadState = "HASHED"
	stateDuplicateChecked uploadState = "DUPLICATE_CHECKED"
	stateRejected         uploadState = "REJECTED"
	stateMaterialized     uploadState = "MATERIALIZED"
	statePersisted        uploadState = "PERSISTED"
	stateFailed           uploadState = "FAILED"
)

// PersistenceError marks a collaborator failure during the write phase,
// carrying the stage that failed so operators can reconcile partial writes.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed at stage %s: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UploadService orchestrates one report upload end to end: archive
// reading, decoding, normalization, hashing, duplicate detection,
// attachment materialization, and persistence.
//
// Decoding, normalizing and hashing are pure in-memory transforms; only
// blob and database calls suspend. Materialization runs strictly after
// the content hash is fixed.
type UploadService struct {
	lookups      LookupRepository
	runs         TestRunRepository
	materializer *AttachmentMaterializer
	wsHub        WebSocketBroadcaster
	logger       *utils.Logger
}

// NewUploadService creates a new upload service instance.
func NewUploadService(lookups LookupRepository, runs TestRunRepository, materializer *AttachmentMaterializer, wsHub WebSocketBroadcaster, logger *utils.Logger) *UploadService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &UploadService{
		lookups:      lookups,
		runs:         runs,
		materializer: materializer,
		wsHub:        wsHub,
		logger:       logger,
	}
}

// ProcessUpload runs the upload state machine for one archive.
//
// A duplicate upload is a successful outcome, not an error: the returned
// result carries the existing run's identity and no new records are
// written. Write-phase failures leave already committed records in place;
// the returned PersistenceError names the failed stage.
func (s *UploadService) ProcessUpload(ctx context.Context, archiveBytes []byte, meta *models.UploadMetadata) (*models.UploadResult, error) {
	meta.ApplyDefaults()
	runID := uuid.New().String()
	log := s.logger.WithSource("upload_service").WithContext(map[string]interface{}{
		"run_id": runID,
		"suite":  meta.Suite,
	})

	state := stateReceived
	s.broadcast(models.EventRunReceived, map[string]interface{}{
		"run_id":    runID,
		"suite":     meta.Suite,
		"file_name": meta.FileName,
	})

	archive, err := parser.OpenArchive(archiveBytes)
	if err != nil {
		return nil, s.fail(log, runID, state, err)
	}

	// One malformed document must not abort extraction of the others.
	docs := make([]*parser.DecodedDocument, 0, len(archive.Documents))
	for _, doc := range archive.Documents {
		decoded, err := parser.DecodeDocument(doc)
		if err != nil {
			log.Warn("Skipping malformed report document", map[string]interface{}{
				"source": doc.Source,
				"error":  err.Error(),
			})
			continue
		}
		docs = append(docs, decoded)
	}
	// Skipping applies to partial damage only. When the archive offered
	// documents and none decoded, the upload as a whole is malformed.
	if len(docs) == 0 && len(archive.Documents) > 0 {
		err := parser.NewProcessingError(parser.CodeDecodeError,
			"no report document could be decoded", nil)
		return nil, s.fail(log, runID, state, err)
	}
	state = stateDecoded

	report := parser.NormalizeDocuments(docs)
	state = stateNormalized

	if branch := parser.DetectBranch(report.CIMetadata); branch != "" {
		meta.Branch = branch
	}
	meta.Environment = parser.NormalizeEnvironment(meta.Environment)

	contentHash := meta.ContentHash
	if contentHash == "" {
		contentHash = parser.ContentHash(report.Tests)
	}
	state = stateHashed

	projectID, err := s.resolveLookups(ctx, meta)
	if err != nil {
		return nil, s.fail(log, runID, state, err)
	}

	existing, err := s.runs.FindRunByContentHash(ctx, contentHash, projectID)
	if err != nil {
		return nil, s.fail(log, runID, state, &PersistenceError{Stage: "duplicate_check", Err: err})
	}
	state = stateDuplicateChecked

	if existing != nil {
		state = stateRejected
		log.Info("Upload rejected as duplicate", map[string]interface{}{
			"existing_run_id": existing.ID,
			"content_hash":    contentHash,
		})
		s.broadcast(models.EventRunDuplicate, map[string]interface{}{
			"run_id":          runID,
			"existing_run_id": existing.ID,
			"content_hash":    contentHash,
		})
		return &models.UploadResult{
			Duplicate: &models.DuplicateInfo{RunID: existing.ID, CreatedAt: existing.CreatedAt},
		}, nil
	}

	// Safe to rewrite references now: nothing hashed changes from here on.
	for ti := range report.Tests {
		for ai := range report.Tests[ti].Attempts {
			attempt := &report.Tests[ti].Attempts[ai]
			attempt.Screenshots = s.materializer.ResolveScreenshots(ctx, archive, attempt.Screenshots)
		}
	}
	state = stateMaterialized

	summary := s.buildRunSummary(runID, projectID, contentHash, meta, report)
	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, runID, state, err)
	}
	if err := s.runs.CreateRun(ctx, summary); err != nil {
		return nil, s.fail(log, runID, state, &PersistenceError{Stage: "run_summary", Err: err})
	}

	defs := canonicalDefinitions(projectID, report.Tests)
	defs, err = s.runs.UpsertTests(ctx, projectID, defs)
	if err != nil {
		return nil, s.fail(log, runID, state, &PersistenceError{Stage: "test_definitions", Err: err})
	}

	executions := s.buildExecutions(ctx, runID, defs, report.Tests)
	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, runID, state, err)
	}
	executions, err = s.runs.InsertExecutions(ctx, executions)
	if err != nil {
		return nil, s.fail(log, runID, state, &PersistenceError{Stage: "executions", Err: err})
	}

	attempts := s.buildAttempts(ctx, runID, executions, report.Tests)
	if len(attempts) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(log, runID, state, err)
		}
		if err := s.runs.InsertAttempts(ctx, attempts); err != nil {
			return nil, s.fail(log, runID, state, &PersistenceError{Stage: "attempts", Err: err})
		}
	}
	state = statePersisted

	log.Info("Upload processed", map[string]interface{}{
		"total_tests":  summary.TotalTests,
		"passed":       summary.Passed,
		"failed":       summary.Failed,
		"flaky":        summary.Flaky,
		"skipped":      summary.Skipped,
		"content_hash": contentHash,
	})
	s.broadcast(models.EventRunProcessed, summary)

	return &models.UploadResult{Run: summary}, nil
}

// resolveLookups validates the caller-supplied names against storage and
// resolves the project scope. A missing record is the caller's mistake,
// not a transport failure.
func (s *UploadService) resolveLookups(ctx context.Context, meta *models.UploadMetadata) (int64, error) {
	if _, err := s.lookups.EnvironmentID(ctx, meta.Environment); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, parser.NewProcessingError(parser.CodeValidationError, "unknown environment "+meta.Environment, nil)
		}
		return 0, &PersistenceError{Stage: "lookup_environment", Err: err}
	}
	if _, err := s.lookups.TriggerID(ctx, meta.Trigger); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, parser.NewProcessingError(parser.CodeValidationError, "unknown trigger "+meta.Trigger, nil)
		}
		return 0, &PersistenceError{Stage: "lookup_trigger", Err: err}
	}

	projectID, err := s.lookups.ProjectIDForSuite(ctx, meta.Suite)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, parser.NewProcessingError(parser.CodeValidationError, "unknown suite "+meta.Suite, nil)
		}
		return 0, &PersistenceError{Stage: "lookup_suite", Err: err}
	}
	return projectID, nil
}

func (s *UploadService) buildRunSummary(runID string, projectID int64, contentHash string, meta *models.UploadMetadata, report *models.ProcessedReport) *models.RunSummary {
	summary := &models.RunSummary{
		ID:          runID,
		ProjectID:   projectID,
		Suite:       meta.Suite,
		TotalTests:  len(report.Tests),
		Branch:      meta.Branch,
		Commit:      meta.Commit,
		Environment: meta.Environment,
		Trigger:     meta.Trigger,
		ContentHash: contentHash,
		FileName:    meta.FileName,
		CIMetadata:  report.CIMetadata,
		CreatedAt:   time.Now().UTC(),
	}
	if report.StartTime != nil {
		summary.CreatedAt = *report.StartTime
	}

	for _, test := range report.Tests {
		summary.Duration += test.Duration
		switch test.Status {
		case models.StatusPassed:
			summary.Passed++
		case models.StatusFlaky:
			summary.Flaky++
		case models.StatusSkipped:
			summary.Skipped++
		default:
			// failed and timedOut both count against the run
			summary.Failed++
		}
	}
	return summary
}

// canonicalDefinitions collects the unique (file, name) pairs of an
// upload, in first-seen order.
func canonicalDefinitions(projectID int64, tests []models.ExtractedTest) []models.CanonicalTest {
	seen := make(map[string]bool, len(tests))
	defs := make([]models.CanonicalTest, 0, len(tests))
	for _, test := range tests {
		key := test.File + "\x00" + test.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		defs = append(defs, models.CanonicalTest{Project: projectID, File: test.File, Name: test.Name})
	}
	return defs
}

func (s *UploadService) buildExecutions(ctx context.Context, runID string, defs []models.CanonicalTest, tests []models.ExtractedTest) []models.ExecutionRecord {
	defIDs := make(map[string]int64, len(defs))
	for _, def := range defs {
		defIDs[def.File+"\x00"+def.Name] = def.ID
	}

	executions := make([]models.ExecutionRecord, 0, len(tests))
	for _, test := range tests {
		final := test.Attempts[len(test.Attempts)-1]
		executions = append(executions, models.ExecutionRecord{
			RunID:          runID,
			TestID:         defIDs[test.File+"\x00"+test.Name],
			Status:         test.Status,
			Duration:       test.Duration,
			Error:          final.Error,
			ErrorStack:     final.ErrorStack,
			Screenshots:    final.Screenshots,
			StepsRef:       s.materializer.StepLogRef(ctx, runID, final.RetryIndex, final.Steps),
			LastFailedStep: parser.LastFailedStep(final.Steps),
			WorkerIndex:    test.WorkerIndex,
			StartedAt:      test.StartedAt,
		})
	}
	return executions
}

// buildAttempts materializes attempt rows only for tests that ran more
// than once, or whose single attempt carries steps or an error worth
// keeping durable.
func (s *UploadService) buildAttempts(ctx context.Context, runID string, executions []models.ExecutionRecord, tests []models.ExtractedTest) []models.AttemptRecord {
	var records []models.AttemptRecord
	for i, test := range tests {
		if !needsAttemptRecords(test) {
			continue
		}
		for _, attempt := range test.Attempts {
			records = append(records, models.AttemptRecord{
				ExecutionID: executions[i].ID,
				RetryIndex:  attempt.RetryIndex,
				Status:      attempt.Status,
				DurationMs:  attempt.DurationMs,
				Error:       attempt.Error,
				ErrorStack:  attempt.ErrorStack,
				Screenshots: attempt.Screenshots,
				StepsRef:    s.materializer.StepLogRef(ctx, runID, attempt.RetryIndex, attempt.Steps),
				StartTime:   attempt.StartTime,
			})
		}
	}
	return records
}

func needsAttemptRecords(test models.ExtractedTest) bool {
	if len(test.Attempts) > 1 {
		return true
	}
	single := test.Attempts[0]
	return len(single.Steps) > 0 || single.Error != ""
}

func (s *UploadService) fail(log *utils.Logger, runID string, state uploadState, err error) error {
	log.Error("Upload failed", err, map[string]interface{}{
		"state": string(state),
	})
	s.broadcast(models.EventRunFailed, map[string]interface{}{
		"run_id": runID,
		"state":  string(state),
		"error":  err.Error(),
	})
	return err
}

func (s *UploadService) broadcast(msgType string, data interface{}) {
	if s.wsHub != nil {
		s.wsHub.BroadcastToAll(msgType, data)
	}
}
