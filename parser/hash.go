package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
)

// hashProjection is the canonicalized view of one test that participates
// in duplicate detection. Caller-supplied labels (environment, trigger,
// branch, commit) are deliberately excluded so that re-uploads of the
// same CI artifact hash identically no matter how they were labeled.
type hashProjection struct {
	Name      string `json:"name"`
	File      string `json:"file"`
	Status    string `json:"status"`
	Duration  int64  `json:"duration"`
	StartedAt string `json:"started_at"`
}

// ContentHash computes the duplicate-detection fingerprint of a test set:
// a SHA-256 over the deterministic serialization of the sorted projection,
// rendered as lowercase hex. The sort key is file + ":" + name compared
// bytewise, so the hash is independent of input ordering, locale, and
// platform.
func ContentHash(tests []models.ExtractedTest) string {
	projections := make([]hashProjection, 0, len(tests))
	for _, test := range tests {
		startedAt := ""
		if test.StartedAt != nil {
			startedAt = test.StartedAt.UTC().Format(time.RFC3339Nano)
		}
		projections = append(projections, hashProjection{
			Name:      test.Name,
			File:      test.File,
			Status:    string(test.Status),
			Duration:  test.Duration,
			StartedAt: startedAt,
		})
	}

	sort.Slice(projections, func(i, j int) bool {
		return projections[i].File+":"+projections[i].Name < projections[j].File+":"+projections[j].Name
	})

	// Struct fields marshal in declaration order, which keeps the
	// serialization canonical.
	serialized, _ := json.Marshal(projections)
	digest := sha256.Sum256(serialized)
	return hex.EncodeToString(digest[:])
}
