package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vitalinkhq/vitalink/internal/readings"
)

// markerLine matches one "label, separator, decimal number" pattern: a
// label of letter-led tokens, then a colon/dash/equals separator, then the
// first decimal number. Only the first match per line counts.
var markerLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 /()._-]{0,40}?) *[:=-] *(\d+(?:\.\d+)?)`)

// LineExtractor is the default MarkerExtractor: a line-oriented scan where
// each line contributes at most one marker and non-matching lines are
// silently dropped. Most document text is not a marker line; dropping it
// is the expected path, not an error.
type LineExtractor struct{}

// NewLineExtractor creates the default line-oriented extractor.
func NewLineExtractor() *LineExtractor {
	return &LineExtractor{}
}

// ExtractMarkers scans normalized text line by line, first match wins per
// line. Label keys are canonicalized ("LDL-C" -> "LDLC"); a repeated label
// keeps its first value.
func (e *LineExtractor) ExtractMarkers(normalizedText string) map[string]float64 {
	found := map[string]float64{}
	for _, line := range strings.Split(normalizedText, "\n") {
		match := markerLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		key := readings.CanonicalMarker(match[1])
		if key == "" {
			continue
		}
		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		if _, exists := found[key]; !exists {
			found[key] = value
		}
	}
	return found
}
