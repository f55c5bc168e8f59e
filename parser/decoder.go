package parser

import (
	"encoding/json"
	"strconv"
	"time"
)

// The decoder parses candidate JSON documents against a permissive schema:
// known fields are typed, unknown fields are ignored, and absence of an
// optional field never fails a document. Only a document that matches
// neither supported shape is rejected (and the caller skips it).

// ErrorDetail is the single-object error form carried by a result.
type ErrorDetail struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// RawAttachment is an attachment entry of one result. Path references a
// file inside the archive; Body carries inline content.
type RawAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
	Body        string `json:"body"`
}

// RawStep is one execution step; steps nest arbitrarily deep.
type RawStep struct {
	Title    string       `json:"title"`
	Duration int64        `json:"duration"`
	Error    *ErrorDetail `json:"error"`
	Steps    []RawStep    `json:"steps"`
}

// RawResult is one execution attempt as reported by the source.
// Both the single-object `error` and the string-array `errors` forms are
// accepted; when both are present `errors` wins.
type RawResult struct {
	WorkerIndex *int            `json:"workerIndex"`
	Status      string          `json:"status"`
	Duration    int64           `json:"duration"`
	Error       *ErrorDetail    `json:"error"`
	Errors      []string        `json:"errors"`
	Attachments []RawAttachment `json:"attachments"`
	Retry       *int            `json:"retry"`
	StartTime   string          `json:"startTime"`
	Steps       []RawStep       `json:"steps"`
}

// ErrorMessage returns the first error message of the result, preferring
// the `errors` array over the `error` object.
func (r *RawResult) ErrorMessage() string {
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	if r.Error != nil {
		return r.Error.Message
	}
	return ""
}

// ErrorStack returns the joined stack representation of all errors.
func (r *RawResult) ErrorStack() string {
	if len(r.Errors) > 0 {
		joined := r.Errors[0]
		for _, e := range r.Errors[1:] {
			joined += "\n\n" + e
		}
		return joined
	}
	if r.Error != nil {
		if r.Error.Stack != "" {
			return r.Error.Stack
		}
		return r.Error.Message
	}
	return ""
}

// RawLocation is the source position of a test.
type RawLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Annotation is a source-provided test annotation (skip reasons, issues).
type Annotation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// TestEntry is one test with its attempt results. Fragment documents use
// `outcome` for the aggregate verdict; full-report documents use `status`
// for the same concept.
type TestEntry struct {
	TestID      string       `json:"testId"`
	Title       string       `json:"title"`
	ProjectName string       `json:"projectName"`
	Location    *RawLocation `json:"location"`
	Outcome     string       `json:"outcome"`
	Status      string       `json:"status"`
	Duration    int64        `json:"duration"`
	Annotations []Annotation `json:"annotations"`
	Results     []RawResult  `json:"results"`
}

// Verdict returns the source-provided aggregate outcome regardless of
// which document shape carried it.
func (t *TestEntry) Verdict() string {
	if t.Outcome != "" {
		return t.Outcome
	}
	return t.Status
}

// Spec is one leaf test definition inside a suite.
type Spec struct {
	Title  string      `json:"title"`
	File   string      `json:"file"`
	Line   int         `json:"line"`
	Column int         `json:"column"`
	Tests  []TestEntry `json:"tests"`
}

// Suite groups specs and nested child suites.
type Suite struct {
	Title  string  `json:"title"`
	File   string  `json:"file"`
	Line   int     `json:"line"`
	Column int     `json:"column"`
	Specs  []Spec  `json:"specs"`
	Suites []Suite `json:"suites"`
}

type fragmentDoc struct {
	Tests []TestEntry `json:"tests"`
}

type fullReportDoc struct {
	Config json.RawMessage `json:"config"`
	Suites []Suite         `json:"suites"`
	Stats  json.RawMessage `json:"stats"`

	Metadata *reportMetadata `json:"metadata"`
}

type runMetadataDoc struct {
	Metadata  *reportMetadata `json:"metadata"`
	StartTime json.RawMessage `json:"startTime"`
}

type reportMetadata struct {
	CI map[string]interface{} `json:"ci"`
}

// DecodedDocument is the intermediate representation of one document.
// Fragment documents fill Tests; full-report documents fill Suites.
type DecodedDocument struct {
	Source     string
	Shape      DocumentShape
	Tests      []TestEntry
	Suites     []Suite
	CIMetadata map[string]string
	StartTime  *time.Time
}

// DecodeDocument parses one candidate document. A document that is not
// valid JSON, or that parses but matches neither supported shape, returns
// a DECODE_ERROR; callers treat that as skippable, not fatal.
func DecodeDocument(doc Document) (*DecodedDocument, error) {
	switch doc.Shape {
	case ShapeFragment:
		return decodeFragment(doc)
	case ShapeFullReport:
		return decodeFullReport(doc)
	case ShapeRunMetadata:
		return decodeRunMetadata(doc)
	default:
		return nil, NewProcessingError(CodeDecodeError, "unknown document shape "+string(doc.Shape), nil)
	}
}

func decodeFragment(doc Document) (*DecodedDocument, error) {
	var fragment fragmentDoc
	if err := json.Unmarshal(doc.Raw, &fragment); err != nil {
		return nil, NewProcessingError(CodeDecodeError, doc.Source+" is not valid JSON", err)
	}
	if fragment.Tests == nil {
		return nil, NewProcessingError(CodeDecodeError, doc.Source+" has no tests array", nil)
	}
	return &DecodedDocument{Source: doc.Source, Shape: doc.Shape, Tests: fragment.Tests}, nil
}

func decodeFullReport(doc Document) (*DecodedDocument, error) {
	var report fullReportDoc
	if err := json.Unmarshal(doc.Raw, &report); err != nil {
		return nil, NewProcessingError(CodeDecodeError, doc.Source+" is not valid JSON", err)
	}
	if report.Suites == nil {
		return nil, NewProcessingError(CodeDecodeError, doc.Source+" has no suites structure", nil)
	}

	decoded := &DecodedDocument{Source: doc.Source, Shape: doc.Shape, Suites: report.Suites}
	if report.Metadata != nil {
		decoded.CIMetadata = stringifyCI(report.Metadata.CI)
	}
	return decoded, nil
}

func decodeRunMetadata(doc Document) (*DecodedDocument, error) {
	var meta runMetadataDoc
	if err := json.Unmarshal(doc.Raw, &meta); err != nil {
		return nil, NewProcessingError(CodeDecodeError, doc.Source+" is not valid JSON", err)
	}

	decoded := &DecodedDocument{Source: doc.Source, Shape: doc.Shape}
	if meta.Metadata != nil {
		decoded.CIMetadata = stringifyCI(meta.Metadata.CI)
	}
	decoded.StartTime = parseStartTime(meta.StartTime)
	return decoded, nil
}

// stringifyCI keeps scalar CI metadata values and discards nested
// structures, which no downstream consumer reads.
func stringifyCI(ci map[string]interface{}) map[string]string {
	if len(ci) == 0 {
		return nil
	}
	out := make(map[string]string, len(ci))
	for key, value := range ci {
		switch v := value.(type) {
		case string:
			out[key] = v
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseStartTime accepts either an epoch-milliseconds number or an
// ISO-8601 string; both forms appear in the wild.
func parseStartTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}

	var millis float64
	if err := json.Unmarshal(raw, &millis); err == nil {
		t := time.UnixMilli(int64(millis)).UTC()
		return &t
	}

	var iso string
	if err := json.Unmarshal(raw, &iso); err == nil {
		return parseISOTime(iso)
	}
	return nil
}

func parseISOTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
