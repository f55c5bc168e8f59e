package parser

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
)

// DocumentShape classifies a candidate JSON document found in an archive.
type DocumentShape string

const (
	// ShapeFragment is a per-file report fragment with a flat "tests" array.
	ShapeFragment DocumentShape = "fragment"
	// ShapeFullReport is a complete report with nested "suites".
	ShapeFullReport DocumentShape = "full_report"
	// ShapeRunMetadata is the embedded report.json, consulted only for
	// CI metadata and the run start time, never for test data.
	ShapeRunMetadata DocumentShape = "run_metadata"
)

// Document is one candidate JSON document extracted from an archive.
type Document struct {
	Source string
	Shape  DocumentShape
	Raw    []byte
}

// Archive is an opened report archive: the candidate documents to decode
// plus every file payload, addressable by archive-relative path so the
// materializer can resolve screenshot references later.
type Archive struct {
	files     map[string][]byte
	Documents []Document
}

// Marker used by the self-contained HTML report format to embed the raw
// report ZIP as a base64 data URI inside index.html.
var embeddedZipMarker = regexp.MustCompile(`=\s*"data:application/zip;base64,([A-Za-z0-9+/=]+)"`)

// OpenArchive opens raw ZIP bytes and sniffs which of the two supported
// report layouts is present.
//
// An archive with index.html is the self-contained HTML format: its
// embedded ZIP is extracted and searched for report.json and per-file
// fragments. Without index.html the archive is treated as the legacy raw
// JSON format (report.json or data/*.json with nested suites).
//
// An empty archive yields zero documents and no error; an archive that
// opens but contains no recognizable report fails with NO_REPORT_FOUND.
func OpenArchive(data []byte) (*Archive, error) {
	files, err := readZip(data)
	if err != nil {
		return nil, NewProcessingError(CodeInvalidZip, "archive is not a readable ZIP", err)
	}

	archive := &Archive{files: files}
	if len(files) == 0 {
		return archive, nil
	}

	if html, ok := findByBase(files, "index.html"); ok {
		return archive, archive.loadEmbedded(html)
	}
	return archive, archive.loadLegacy()
}

// loadEmbedded handles the self-contained HTML report layout.
func (a *Archive) loadEmbedded(html []byte) error {
	match := embeddedZipMarker.FindSubmatch(html)
	if match == nil {
		return NewProcessingError(CodeNoEmbeddedReport, "index.html has no embedded report payload", nil)
	}

	payload, err := base64.StdEncoding.DecodeString(string(match[1]))
	if err != nil {
		return NewProcessingError(CodeNoEmbeddedReport, "embedded report payload is not valid base64", err)
	}

	inner, err := readZip(payload)
	if err != nil {
		return NewProcessingError(CodeNoEmbeddedReport, "embedded report payload is not a readable ZIP", err)
	}

	// Embedded files join the outer namespace so screenshot paths resolve.
	for name, content := range inner {
		a.files[name] = content
	}

	hasReport := false
	for _, name := range sortedNames(inner) {
		content := inner[name]
		switch {
		case path.Base(name) == "report.json":
			hasReport = true
			a.Documents = append(a.Documents, Document{Source: name, Shape: ShapeRunMetadata, Raw: content})
		case strings.HasSuffix(name, ".json") && bytes.Contains(content, []byte(`"tests"`)):
			// Cheap structural probe only; syntactically broken fragments
			// are still yielded so the decoder can warn and skip them.
			a.Documents = append(a.Documents, Document{Source: name, Shape: ShapeFragment, Raw: content})
		}
	}

	if !hasReport && a.fragmentCount() == 0 {
		return NewProcessingError(CodeNoReportFound, "embedded archive contains no report documents", nil)
	}
	return nil
}

// loadLegacy handles the raw JSON-report layout.
func (a *Archive) loadLegacy() error {
	if report, ok := findByBase(a.files, "report.json"); ok {
		a.Documents = append(a.Documents, Document{Source: "report.json", Shape: ShapeFullReport, Raw: report})
		return nil
	}

	for _, name := range sortedNames(a.files) {
		if strings.HasPrefix(name, "data/") && strings.HasSuffix(name, ".json") {
			a.Documents = append(a.Documents, Document{Source: name, Shape: ShapeFullReport, Raw: a.files[name]})
		}
	}

	if len(a.Documents) == 0 {
		return NewProcessingError(CodeNoReportFound, "archive contains no report.json or data/*.json documents", nil)
	}
	return nil
}

// ReadFile resolves an archive-relative path to its bytes. Besides the
// exact path it tolerates "./" prefixes and suffix matches, since reports
// reference attachments relative to directories we flattened away.
func (a *Archive) ReadFile(p string) ([]byte, bool) {
	clean := normalizePath(p)
	if content, ok := a.files[clean]; ok {
		return content, true
	}
	for name, content := range a.files {
		if strings.HasSuffix(name, "/"+clean) {
			return content, true
		}
	}
	return nil, false
}

// FileCount returns the number of files in the archive.
func (a *Archive) FileCount() int {
	return len(a.files)
}

func (a *Archive) fragmentCount() int {
	n := 0
	for _, doc := range a.Documents {
		if doc.Shape == ShapeFragment {
			n++
		}
	}
	return n
}

func readZip(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte)
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files[normalizePath(f.Name)] = content
	}
	return files, nil
}

func normalizePath(p string) string {
	return strings.TrimPrefix(path.Clean(strings.TrimPrefix(p, "./")), "/")
}

func findByBase(files map[string][]byte, base string) ([]byte, bool) {
	for _, name := range sortedNames(files) {
		if path.Base(name) == base {
			return files[name], true
		}
	}
	return nil, false
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
