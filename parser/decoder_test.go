package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument_Fragment(t *testing.T) {
	doc := Document{
		Source: "suite.json",
		Shape:  ShapeFragment,
		Raw: []byte(`{
			"tests": [
				{"testId": "t1", "title": "logs in", "outcome": "expected",
				 "location": {"file": "login.spec.ts", "line": 10, "column": 2},
				 "results": [{"status": "passed", "duration": 1200}],
				 "unknownField": {"nested": true}}
			]
		}`),
	}

	decoded, err := DecodeDocument(doc)

	require.NoError(t, err)
	require.Len(t, decoded.Tests, 1)
	entry := decoded.Tests[0]
	assert.Equal(t, "t1", entry.TestID)
	assert.Equal(t, "logs in", entry.Title)
	assert.Equal(t, "expected", entry.Verdict())
	require.NotNil(t, entry.Location)
	assert.Equal(t, "login.spec.ts", entry.Location.File)
}

func TestDecodeDocument_FragmentWithEmptyTests(t *testing.T) {
	doc := Document{Source: "empty.json", Shape: ShapeFragment, Raw: []byte(`{"tests": []}`)}

	decoded, err := DecodeDocument(doc)

	require.NoError(t, err)
	assert.Empty(t, decoded.Tests)
}

func TestDecodeDocument_FragmentMissingTests(t *testing.T) {
	doc := Document{Source: "bad.json", Shape: ShapeFragment, Raw: []byte(`{"config": {}}`)}

	_, err := DecodeDocument(doc)

	require.Error(t, err)
	assert.True(t, IsCode(err, CodeDecodeError))
}

func TestDecodeDocument_FragmentInvalidJSON(t *testing.T) {
	doc := Document{Source: "broken.json", Shape: ShapeFragment, Raw: []byte(`{"tests": [truncated`)}

	_, err := DecodeDocument(doc)

	require.Error(t, err)
	assert.True(t, IsCode(err, CodeDecodeError))
}

func TestDecodeDocument_FullReport(t *testing.T) {
	doc := Document{
		Source: "report.json",
		Shape:  ShapeFullReport,
		Raw: []byte(`{
			"suites": [
				{"title": "auth.spec.ts", "file": "auth.spec.ts",
				 "specs": [{"title": "logs in", "tests": [{"status": "expected", "results": [{"status": "passed"}]}]}]}
			],
			"metadata": {"ci": {"BRANCH": "main", "buildNumber": 42, "cached": true, "nested": {"ignored": 1}}}
		}`),
	}

	decoded, err := DecodeDocument(doc)

	require.NoError(t, err)
	require.Len(t, decoded.Suites, 1)
	assert.Equal(t, "expected", decoded.Suites[0].Specs[0].Tests[0].Verdict())

	// Scalar CI values survive, nested structures are dropped
	assert.Equal(t, map[string]string{
		"BRANCH":      "main",
		"buildNumber": "42",
		"cached":      "true",
	}, decoded.CIMetadata)
}

func TestDecodeDocument_FullReportMissingSuites(t *testing.T) {
	doc := Document{Source: "report.json", Shape: ShapeFullReport, Raw: []byte(`{"stats": {}}`)}

	_, err := DecodeDocument(doc)

	require.Error(t, err)
	assert.True(t, IsCode(err, CodeDecodeError))
}

func TestDecodeDocument_RunMetadata(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected *time.Time
	}{
		{
			name:     "epoch millis",
			raw:      `{"startTime": 1700000000000}`,
			expected: timePtr(time.UnixMilli(1700000000000).UTC()),
		},
		{
			name:     "iso string",
			raw:      `{"startTime": "2024-03-01T10:30:00.500Z"}`,
			expected: timePtr(time.Date(2024, 3, 1, 10, 30, 0, 500000000, time.UTC)),
		},
		{
			name:     "absent",
			raw:      `{}`,
			expected: nil,
		},
		{
			name:     "unparseable",
			raw:      `{"startTime": "yesterday"}`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{Source: "report.json", Shape: ShapeRunMetadata, Raw: []byte(tt.raw)}

			decoded, err := DecodeDocument(doc)

			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, decoded.StartTime)
			} else {
				require.NotNil(t, decoded.StartTime)
				assert.True(t, tt.expected.Equal(*decoded.StartTime))
			}
		})
	}
}

func TestRawResult_ErrorForms(t *testing.T) {
	tests := []struct {
		name          string
		result        RawResult
		expectedMsg   string
		expectedStack string
	}{
		{
			name:          "error object only",
			result:        RawResult{Error: &ErrorDetail{Message: "boom", Stack: "boom\n  at x.ts:1"}},
			expectedMsg:   "boom",
			expectedStack: "boom\n  at x.ts:1",
		},
		{
			name:          "error object without stack",
			result:        RawResult{Error: &ErrorDetail{Message: "boom"}},
			expectedMsg:   "boom",
			expectedStack: "boom",
		},
		{
			name:          "errors array wins over error object",
			result:        RawResult{Error: &ErrorDetail{Message: "old"}, Errors: []string{"first", "second"}},
			expectedMsg:   "first",
			expectedStack: "first\n\nsecond",
		},
		{
			name:          "no errors",
			result:        RawResult{},
			expectedMsg:   "",
			expectedStack: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMsg, tt.result.ErrorMessage())
			assert.Equal(t, tt.expectedStack, tt.result.ErrorStack())
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
