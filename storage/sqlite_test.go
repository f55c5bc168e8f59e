package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id, hash string, projectID int64, createdAt time.Time) *models.RunSummary {
	return &models.RunSummary{
		ID:          id,
		ProjectID:   projectID,
		Suite:       "web",
		TotalTests:  3,
		Passed:      2,
		Failed:      0,
		Flaky:       1,
		Skipped:     0,
		Duration:    4500,
		Branch:      "main",
		Commit:      "abc123",
		Environment: "production",
		Trigger:     "ci",
		ContentHash: hash,
		FileName:    "report.zip",
		CIMetadata:  map[string]string{"BRANCH": "main"},
		CreatedAt:   createdAt,
	}
}

func TestStorage_LookupsGetOrCreate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	envID, err := store.EnvironmentID(ctx, "production")
	require.NoError(t, err)

	again, err := store.EnvironmentID(ctx, "production")
	require.NoError(t, err)
	assert.Equal(t, envID, again)

	other, err := store.EnvironmentID(ctx, "staging")
	require.NoError(t, err)
	assert.NotEqual(t, envID, other)

	trigID, err := store.TriggerID(ctx, "ci")
	require.NoError(t, err)
	assert.Greater(t, trigID, int64(0))

	projID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)
	assert.Greater(t, projID, int64(0))
}

func TestStorage_LookupEmptyName(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.EnvironmentID(ctx, "")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = store.ProjectIDForSuite(ctx, "")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestStorage_CreateAndFindRunByContentHash(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-1", "hash-1", projectID, created)))

	found, err := store.FindRunByContentHash(ctx, "hash-1", projectID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "run-1", found.ID)
	assert.Equal(t, 3, found.TotalTests)
	assert.Equal(t, map[string]string{"BRANCH": "main"}, found.CIMetadata)
	assert.WithinDuration(t, created, found.CreatedAt, time.Second)

	// No match yields (nil, nil)
	missing, err := store.FindRunByContentHash(ctx, "other-hash", projectID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Same hash under another project is not a duplicate
	otherProject, err := store.ProjectIDForSuite(ctx, "mobile")
	require.NoError(t, err)
	missing, err = store.FindRunByContentHash(ctx, "hash-1", otherProject)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_CreateRunDuplicateHashRejected(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-1", "hash-1", projectID, now)))

	err = store.CreateRun(ctx, sampleRun("run-2", "hash-1", projectID, now))
	assert.Error(t, err)
}

func TestStorage_UpsertTestsStableIdentity(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)

	defs := []models.CanonicalTest{
		{File: "login.spec.ts", Name: "logs in"},
		{File: "login.spec.ts", Name: "logs out"},
	}

	first, err := store.UpsertTests(ctx, projectID, defs)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Greater(t, first[0].ID, int64(0))
	assert.NotEqual(t, first[0].ID, first[1].ID)

	// Re-upserting resolves to the same identities
	second, err := store.UpsertTests(ctx, projectID, []models.CanonicalTest{
		{File: "login.spec.ts", Name: "logs in"},
	})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestStorage_ExecutionsRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-1", "hash-1", projectID, time.Now().UTC())))

	defs, err := store.UpsertTests(ctx, projectID, []models.CanonicalTest{
		{File: "login.spec.ts", Name: "logs in"},
	})
	require.NoError(t, err)

	worker := 3
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	inserted, err := store.InsertExecutions(ctx, []models.ExecutionRecord{
		{
			RunID:          "run-1",
			TestID:         defs[0].ID,
			Status:         models.StatusFailed,
			Duration:       2500,
			Error:          "locator timeout",
			ErrorStack:     "locator timeout\n  at login.spec.ts:12",
			Screenshots:    []string{"https://cdn.example.com/shot.png"},
			StepsRef:       "https://cdn.example.com/steps.json",
			LastFailedStep: &models.TestStep{Title: "click submit", Error: "locator timeout"},
			WorkerIndex:    &worker,
			StartedAt:      &started,
		},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Greater(t, inserted[0].ID, int64(0))

	fetched, err := store.GetExecutions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	got := fetched[0]
	assert.Equal(t, defs[0].ID, got.TestID)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "locator timeout", got.Error)
	assert.Equal(t, []string{"https://cdn.example.com/shot.png"}, got.Screenshots)
	require.NotNil(t, got.LastFailedStep)
	assert.Equal(t, "click submit", got.LastFailedStep.Title)
	require.NotNil(t, got.WorkerIndex)
	assert.Equal(t, 3, *got.WorkerIndex)
	require.NotNil(t, got.StartedAt)
	assert.WithinDuration(t, started, *got.StartedAt, time.Second)
}

func TestStorage_InsertAttempts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-1", "hash-1", projectID, time.Now().UTC())))

	defs, err := store.UpsertTests(ctx, projectID, []models.CanonicalTest{
		{File: "login.spec.ts", Name: "logs out"},
	})
	require.NoError(t, err)

	executions, err := store.InsertExecutions(ctx, []models.ExecutionRecord{
		{RunID: "run-1", TestID: defs[0].ID, Status: models.StatusFlaky, Duration: 1200},
	})
	require.NoError(t, err)

	err = store.InsertAttempts(ctx, []models.AttemptRecord{
		{ExecutionID: executions[0].ID, RetryIndex: 0, Status: models.StatusFailed, DurationMs: 500, Error: "boom"},
		{ExecutionID: executions[0].ID, RetryIndex: 1, Status: models.StatusPassed, DurationMs: 700},
	})
	assert.NoError(t, err)
}

func TestStorage_ListAndCountRuns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)
	otherProject, err := store.ProjectIDForSuite(ctx, "mobile")
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-1", "hash-1", projectID, base)))
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-2", "hash-2", projectID, base.Add(time.Hour))))
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-3", "hash-3", otherProject, base.Add(2*time.Hour))))

	// Most recent first, across all projects
	all, err := store.ListRuns(ctx, 0, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].ID)
	assert.Equal(t, "run-1", all[2].ID)

	// Scoped to one project with paging
	page, err := store.ListRuns(ctx, projectID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "run-1", page[0].ID)

	total, err := store.CountRuns(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	scoped, err := store.CountRuns(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, scoped)
}

func TestStorage_GetRun(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	projectID, err := store.ProjectIDForSuite(ctx, "web")
	require.NoError(t, err)
	require.NoError(t, store.CreateRun(ctx, sampleRun("run-1", "hash-1", projectID, time.Now().UTC())))

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)
}
