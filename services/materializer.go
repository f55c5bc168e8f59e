package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/parser"
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/google/uuid"
)

// AttachmentMaterializer persists extracted artifacts via blob storage and
// rewrites in-memory references to the returned locations. Every failure
// path degrades to inline base64 data-URI encoding; a screenshot is never
// silently dropped. With no blob storage configured it always inlines.
//
// Materialization runs strictly after the content hash is computed; it
// rewrites nothing that feeds the hash.
type AttachmentMaterializer struct {
	blob        BlobStorage
	retryConfig *utils.RetryConfig
	breaker     *utils.CircuitBreaker
	logger      *utils.Logger
}

// NewAttachmentMaterializer creates a materializer. blob may be nil, in
// which case every artifact is inlined.
func NewAttachmentMaterializer(blob BlobStorage, logger *utils.Logger) *AttachmentMaterializer {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &AttachmentMaterializer{
		blob:        blob,
		retryConfig: utils.DefaultRetryConfig(),
		breaker:     utils.NewCircuitBreaker(utils.DefaultCircuitBreakerConfig("blob_storage"), logger),
		logger:      logger,
	}
}

// ResolveScreenshots resolves archive-relative screenshot paths to durable
// references. The result has exactly one entry per input, in input order,
// regardless of which uploads finish first: uploads fan out per file and
// fan back in by index. A path that cannot be read from the archive keeps
// its original value.
func (m *AttachmentMaterializer) ResolveScreenshots(ctx context.Context, archive *parser.Archive, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}

	refs := make([]string, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		data, ok := archive.ReadFile(p)
		if !ok {
			m.logger.WithSource("materializer").Warn("Screenshot path not found in archive", map[string]interface{}{
				"path": p,
			})
			refs[i] = p
			continue
		}

		wg.Add(1)
		go func(i int, p string, data []byte) {
			defer wg.Done()
			refs[i] = m.materialize(ctx, path.Base(p), data, screenshotContentType(p))
		}(i, p, data)
	}
	wg.Wait()
	return refs
}

// StepLogRef serializes a step tree as JSON and stores it under the
// upload-else-inline policy. Returns an empty string when there are no steps.
func (m *AttachmentMaterializer) StepLogRef(ctx context.Context, runID string, retryIndex int, steps []models.TestStep) string {
	if len(steps) == 0 {
		return ""
	}

	data, err := json.Marshal(steps)
	if err != nil {
		m.logger.WithSource("materializer").Error("Failed to serialize step log", err, nil)
		return ""
	}

	name := fmt.Sprintf("%s-steps-%d.json", runID, retryIndex)
	return m.materialize(ctx, name, data, "application/json")
}

// materialize uploads one artifact and resolves its durable URL, falling
// back to an inline data URI when storage is unconfigured or either step
// fails. Uploads retry with backoff behind a circuit breaker so a dead
// blob backend degrades the whole upload to inlining quickly.
func (m *AttachmentMaterializer) materialize(ctx context.Context, filename string, data []byte, contentType string) string {
	if m.blob == nil {
		return inlineDataURI(contentType, data)
	}

	key := blobKey(filename)
	err := utils.RetryWithCircuitBreaker(ctx, m.retryConfig, m.breaker, func(ctx context.Context) error {
		return m.blob.Upload(ctx, key, data, contentType)
	}, m.logger)
	if err != nil {
		m.logger.WithSource("materializer").Warn("Blob upload failed, falling back to inline encoding", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return inlineDataURI(contentType, data)
	}

	url, err := m.blob.DurableURL(ctx, key)
	if err != nil {
		m.logger.WithSource("materializer").Warn("Durable URL resolution failed, falling back to inline encoding", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return inlineDataURI(contentType, data)
	}
	return url
}

// blobKey builds a collision-resistant storage key: time-based prefix plus
// the original filename.
func blobKey(filename string) string {
	return fmt.Sprintf("%s/%s-%s",
		time.Now().UTC().Format("2006/01/02"), uuid.New().String(), filename)
}

func screenshotContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func inlineDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
