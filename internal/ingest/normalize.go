package ingest

import (
	"regexp"
	"strings"
)

// OCR output of lab reports loses whitespace in predictable ways. These
// fixups restore the "label: value unit" shape the marker scanner expects.
var (
	// "LDL-C:4.2" -> "LDL-C: 4.2"
	colonGluedValue = regexp.MustCompile(`([A-Za-z0-9)\]]):(\d)`)
	// "4.2mmol/L" -> "4.2 mmol/L"
	digitGluedUnit = regexp.MustCompile(`(\d)([A-Za-z%])`)
	// "4.2 mmol/L HDL: 1.7" -> value, then a fresh capitalized label on its
	// own line. The unit token is optional: "97 SpO2:" splits too.
	mergedPairs = regexp.MustCompile(`(\d(?:\.\d+)?(?: [A-Za-z][A-Za-z/%]*)?) +([A-Z][A-Za-z0-9-]* *:)`)
	// runs of spaces and tabs, preserving line structure
	spaceRuns = regexp.MustCompile(`[ \t]+`)
)

// NormalizeText repairs common OCR whitespace damage: reinserts the space
// between a label and its value, between a number and its unit, splits two
// label/value pairs merged onto one line, and collapses repeated whitespace.
func NormalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = spaceRuns.ReplaceAllString(line, " ")
		line = colonGluedValue.ReplaceAllString(line, "$1: $2")
		line = digitGluedUnit.ReplaceAllString(line, "$1 $2")
		line = mergedPairs.ReplaceAllString(line, "$1\n$2")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, part := range strings.Split(line, "\n") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return strings.Join(out, "\n")
}

// alphanumericDensity is the share of alphanumeric runes in s.
func alphanumericDensity(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	total, alnum := 0, 0
	for _, r := range s {
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum++
		}
	}
	return float64(alnum) / float64(total)
}
