package parser

import "github.com/flakeboard/flakeboard-backend/models"

// LastFailedStep finds the most recent failing step in a possibly nested
// step tree, for the compact "what went wrong" summary stored next to the
// full step log.
//
// Traversal policy (deterministic, pinned by tests): siblings are visited
// in reverse order, and for each sibling its nested steps are searched
// before the sibling's own error is considered. The deepest, most recent
// failure therefore wins.
func LastFailedStep(steps []models.TestStep) *models.TestStep {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if nested := LastFailedStep(step.Steps); nested != nil {
			return nested
		}
		if step.Error != "" {
			found := step
			return &found
		}
	}
	return nil
}
