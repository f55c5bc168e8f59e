package services

import (
	"context"
	"errors"

	"github.com/flakeboard/flakeboard-backend/models"
)

// ErrNotFound distinguishes "no such record" from transport failures in
// repository lookups.
var ErrNotFound = errors.New("not found")

// WebSocketBroadcaster pushes run lifecycle events to connected dashboards.
type WebSocketBroadcaster interface {
	BroadcastToAll(msgType string, data interface{})
}

// BlobStorage persists extracted artifacts (screenshots, step logs)
// outside the database. Implementations must treat Upload and DurableURL
// as independently fallible; the materializer falls back to inline
// encoding when either fails.
type BlobStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	DurableURL(ctx context.Context, key string) (string, error)
}

// LookupRepository resolves caller-supplied names to storage identifiers.
// A missing record is reported as ErrNotFound, distinct from transport errors.
type LookupRepository interface {
	EnvironmentID(ctx context.Context, name string) (int64, error)
	TriggerID(ctx context.Context, name string) (int64, error)
	ProjectIDForSuite(ctx context.Context, suite string) (int64, error)
}

// TestRunRepository is the persistence surface for processed uploads.
//
// FindRunByContentHash returns (nil, nil) when no run matches.
// UpsertTests resolves canonical test identities against the conflict key
// (project, file, name) and returns the definitions with IDs filled in.
type TestRunRepository interface {
	FindRunByContentHash(ctx context.Context, hash string, projectID int64) (*models.RunSummary, error)
	CreateRun(ctx context.Context, run *models.RunSummary) error
	UpsertTests(ctx context.Context, projectID int64, defs []models.CanonicalTest) ([]models.CanonicalTest, error)
	InsertExecutions(ctx context.Context, records []models.ExecutionRecord) ([]models.ExecutionRecord, error)
	InsertAttempts(ctx context.Context, records []models.AttemptRecord) error

	ListRuns(ctx context.Context, projectID int64, limit, offset int) ([]models.RunSummary, error)
	CountRuns(ctx context.Context, projectID int64) (int, error)
	GetRun(ctx context.Context, runID string) (*models.RunSummary, error)
	GetExecutions(ctx context.Context, runID string) ([]models.ExecutionRecord, error)
}
