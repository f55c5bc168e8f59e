package parser

import (
	"strings"

	"github.com/flakeboard/flakeboard-backend/models"
)

// FlatSpec is one leaf test definition after suite flattening, carrying
// the composed display name and owning file.
type FlatSpec struct {
	Name     string
	File     string
	Location *models.Location
	Entry    TestEntry
}

// NormalizeDocuments merges a set of decoded documents into one processed
// report: flat canonical test records, CI metadata, and the run start time.
// Document order is preserved so the output is deterministic for a given
// archive.
func NormalizeDocuments(docs []*DecodedDocument) *models.ProcessedReport {
	report := &models.ProcessedReport{Tests: []models.ExtractedTest{}}

	for _, doc := range docs {
		for key, value := range doc.CIMetadata {
			if report.CIMetadata == nil {
				report.CIMetadata = make(map[string]string)
			}
			if _, exists := report.CIMetadata[key]; !exists {
				report.CIMetadata[key] = value
			}
		}
		if report.StartTime == nil {
			report.StartTime = doc.StartTime
		}

		for _, entry := range doc.Tests {
			file := ""
			var loc *models.Location
			if entry.Location != nil {
				file = entry.Location.File
				loc = &models.Location{File: entry.Location.File, Line: entry.Location.Line, Column: entry.Location.Column}
			}
			if test := NormalizeEntry(entry, entry.Title, file, loc); test != nil {
				report.Tests = append(report.Tests, *test)
			}
		}

		for _, flat := range FlattenSuites(doc.Suites) {
			if test := NormalizeEntry(flat.Entry, flat.Name, flat.File, flat.Location); test != nil {
				report.Tests = append(report.Tests, *test)
			}
		}
	}

	return report
}

// FlattenSuites walks a suite tree depth-first, visiting nested suites
// before sibling specs, and returns every leaf spec exactly once. Suite
// titles that are empty or merely repeat the file path are not part of
// the composed test name.
func FlattenSuites(suites []Suite) []FlatSpec {
	var flat []FlatSpec
	for _, suite := range suites {
		flat = append(flat, flattenSuite(suite, nil, "")...)
	}
	return flat
}

func flattenSuite(suite Suite, titles []string, inheritedFile string) []FlatSpec {
	file := suite.File
	if file == "" {
		file = inheritedFile
	}
	if suite.Title != "" && suite.Title != suite.File {
		titles = append(titles, suite.Title)
	}

	var flat []FlatSpec
	for _, child := range suite.Suites {
		flat = append(flat, flattenSuite(child, titles, file)...)
	}
	for _, spec := range suite.Specs {
		specFile := spec.File
		if specFile == "" {
			specFile = file
		}
		name := strings.Join(append(append([]string{}, titles...), spec.Title), " > ")
		loc := &models.Location{File: specFile, Line: spec.Line, Column: spec.Column}
		for _, entry := range spec.Tests {
			flat = append(flat, FlatSpec{Name: name, File: specFile, Location: loc, Entry: entry})
		}
	}
	return flat
}

// NormalizeEntry converts one decoded test entry into a canonical test
// record. Entries with no recorded results carry no signal and are dropped.
//
// The aggregate status is derived from the final attempt and the
// source-provided verdict:
//   - final attempt skipped        -> skipped, regardless of verdict
//   - verdict "expected"           -> the final attempt's raw status
//   - verdict "flaky"              -> flaky
//   - anything else ("unexpected", unknown) -> failed
//
// Duration is the sum of every attempt's duration, not just the final
// attempt's: total compute spent, not wall time of the last try.
func NormalizeEntry(entry TestEntry, name, file string, loc *models.Location) *models.ExtractedTest {
	if len(entry.Results) == 0 {
		return nil
	}

	attempts := make([]models.ExtractedAttempt, 0, len(entry.Results))
	var totalDuration int64
	for i, result := range entry.Results {
		attempts = append(attempts, buildAttempt(result, i))
		totalDuration += result.Duration
	}

	final := attempts[len(attempts)-1]
	test := &models.ExtractedTest{
		ID:          entry.TestID,
		Name:        name,
		File:        file,
		Status:      deriveStatus(entry.Verdict(), final.Status),
		Duration:    totalDuration,
		WorkerIndex: entry.Results[len(entry.Results)-1].WorkerIndex,
		StartedAt:   final.StartTime,
		Attempts:    attempts,
		Location:    loc,
	}
	return test
}

func deriveStatus(verdict string, finalStatus models.TestStatus) models.TestStatus {
	if finalStatus == models.StatusSkipped {
		return models.StatusSkipped
	}
	switch verdict {
	case "expected":
		return finalStatus
	case "flaky":
		return models.StatusFlaky
	default:
		return models.StatusFailed
	}
}

// buildAttempt extracts screenshots, inline attachments, errors and steps
// for one attempt, independently of every other attempt, so multi-retry
// inspection has the full picture per try.
func buildAttempt(result RawResult, position int) models.ExtractedAttempt {
	retry := position
	if result.Retry != nil {
		retry = *result.Retry
	}

	var screenshots []string
	var attachments []models.InlineAttachment
	for _, att := range result.Attachments {
		if isScreenshot(att) {
			screenshots = append(screenshots, att.Path)
		} else if att.Body != "" {
			attachments = append(attachments, models.InlineAttachment{
				Name:        att.Name,
				ContentType: att.ContentType,
				Content:     att.Body,
			})
		}
	}

	return models.ExtractedAttempt{
		RetryIndex:  retry,
		Status:      attemptStatus(result.Status),
		DurationMs:  result.Duration,
		Error:       result.ErrorMessage(),
		ErrorStack:  result.ErrorStack(),
		Screenshots: screenshots,
		Attachments: attachments,
		Steps:       convertSteps(result.Steps),
		StartTime:   parseISOTime(result.StartTime),
	}
}

// isScreenshot classifies an attachment as a screenshot: an image content
// type AND a resolvable path. Inline image bodies cannot be resolved to
// archive bytes and are not screenshots.
func isScreenshot(att RawAttachment) bool {
	return strings.HasPrefix(att.ContentType, "image/") && att.Path != ""
}

func attemptStatus(raw string) models.TestStatus {
	switch raw {
	case "passed":
		return models.StatusPassed
	case "skipped":
		return models.StatusSkipped
	case "timedOut":
		return models.StatusTimedOut
	default:
		return models.StatusFailed
	}
}

func convertSteps(raw []RawStep) []models.TestStep {
	if len(raw) == 0 {
		return nil
	}
	steps := make([]models.TestStep, 0, len(raw))
	for _, s := range raw {
		step := models.TestStep{
			Title:      s.Title,
			DurationMs: s.Duration,
			Steps:      convertSteps(s.Steps),
		}
		if s.Error != nil {
			step.Error = s.Error.Message
		}
		steps = append(steps, step)
	}
	return steps
}
